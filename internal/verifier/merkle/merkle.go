// Package merkle builds inclusion proofs over the active verifier set.
//
// Leaves are hex SHA-256 digests. An odd node at the end of a level is paired
// with itself, so every proof has exactly one step per level.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
)

// Step is one sibling on the path from a leaf to the root.
// Left reports whether the sibling sits to the left of the running hash.
type Step struct {
	Hash string `json:"hash"`
	Left bool   `json:"left"`
}

// Proof is an inclusion proof for a single leaf.
type Proof struct {
	LeafHash string `json:"leaf_hash"`
	Index    int    `json:"index"`
	Root     string `json:"root"`
	Steps    []Step `json:"steps"`
}

// Build returns the root hash and one proof per leaf, in leaf order.
func Build(leaves []string) (string, []Proof) {
	if len(leaves) == 0 {
		return "", nil
	}

	levels := [][]string{append([]string(nil), leaves...)}
	for level := levels[0]; len(level) > 1; {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, hashPair(level[i], right))
		}
		levels = append(levels, next)
		level = next
	}
	root := levels[len(levels)-1][0]

	proofs := make([]Proof, len(leaves))
	for leaf := range leaves {
		idx := leaf
		steps := make([]Step, 0, len(levels)-1)
		for _, row := range levels[:len(levels)-1] {
			sibling := idx ^ 1
			if sibling >= len(row) {
				sibling = idx
			}
			steps = append(steps, Step{Hash: row[sibling], Left: sibling < idx})
			idx /= 2
		}
		proofs[leaf] = Proof{LeafHash: leaves[leaf], Index: leaf, Root: root, Steps: steps}
	}
	return root, proofs
}

// Verify recomputes the root from the proof and compares it to root.
func Verify(proof Proof, root string) bool {
	if proof.LeafHash == "" || root == "" {
		return false
	}
	acc := proof.LeafHash
	for _, s := range proof.Steps {
		if s.Left {
			acc = hashPair(s.Hash, acc)
		} else {
			acc = hashPair(acc, s.Hash)
		}
	}
	return acc == root
}

func hashPair(a, b string) string {
	h := sha256.New()
	h.Write([]byte(a))
	h.Write([]byte(b))
	return hex.EncodeToString(h.Sum(nil))
}
