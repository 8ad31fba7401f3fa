package models

import (
	"fmt"
	"strings"
	"unicode"

	id "rwaledger/pkg/domain"
)

const nameCodeLength = 6

// NewVerifierID formats VER-<tier>-<NAME6>-<seq>, where NAME6 is the first six
// letters or digits of the name, upper-cased.
func NewVerifierID(tier Tier, name string, sequence int64) id.VerifierID {
	return id.VerifierID(fmt.Sprintf("VER-%s-%s-%d", tier, nameCode(name), sequence))
}

func nameCode(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			if b.Len() == nameCodeLength {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "ANON"
	}
	return b.String()
}
