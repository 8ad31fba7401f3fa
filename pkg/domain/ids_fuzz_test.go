//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseTokenID checks that parsing never panics and that accepted
// identifiers round-trip unchanged.
func FuzzParseTokenID(f *testing.F) {
	f.Add("")
	f.Add("composite-1")
	f.Add("VER-T4-BIGFOU-4")
	f.Add("'; DROP TABLE chains;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("primary-1\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseTokenID(input)
		if err == nil {
			if id.String() != input {
				t.Error("accepted ID changed value")
			}
			if len(input) > maxOpaqueIDLength {
				t.Error("oversized input was accepted")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseChangeID checks UUID-backed identifiers round-trip through String.
func FuzzParseChangeID(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("invalid")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseChangeID(input)
		if err != nil {
			return
		}
		again, err := ParseChangeID(id.String())
		if err != nil {
			t.Errorf("valid ID failed round-trip: %v", err)
		}
		if again != id {
			t.Error("round-trip changed ID value")
		}
	})
}
