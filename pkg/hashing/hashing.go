// Package hashing holds the fixed hash functions every process must agree on.
//
// Integrity anchors use SHA3-256 over the raw identifier pair. Content hashes
// use SHA-256 over canonical JSON and carry an algorithm prefix so stored
// values stay self-describing.
package hashing

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/sha3"
)

const contentPrefix = "sha256:"

// Integrity returns the hex SHA3-256 digest of parts, each written as a
// big-endian uint64 length followed by its bytes. Identifiers may contain
// any byte, so no separator can keep part boundaries unambiguous.
func Integrity(parts ...string) string {
	h := sha3.New256()
	var size [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		h.Write(size[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Content returns "sha256:<hex>" over the canonical JSON encoding of v.
// encoding/json sorts map keys, which makes map payloads deterministic.
func Content(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonical json: %w", err)
	}
	sum := sha256.Sum256(b)
	return contentPrefix + hex.EncodeToString(sum[:]), nil
}

// SHA256Hex returns the bare hex SHA-256 of b.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
