// Package merkle builds and folds the Merkle tree a pack commits its
// receipts under, and the per-leaf inclusion proofs extracted from it.
//
// Leaves are the binary form of a receipt's hex hash, interior nodes are
// sha256(left||right), and an odd-length level promotes its last element
// instead of pairing it.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/kojibai/pbi-core/pkg/pbierr"
)

// Tree is the full materialized tree over a pack's receipt hashes, built in
// declared order so each level's siblings are addressable by index.
type Tree struct {
	Leaves [][32]byte   // leaf hashes, in declared order
	Levels [][][32]byte // Levels[0] == Leaves; each subsequent level is half the size (rounded up)
	Root   string       // 64-hex root hash
}

// Build constructs the tree over leafHashesHex (already-computed 64-hex
// receiptHash strings, in the pack's canonical receipt order).
func Build(leafHashesHex []string) (*Tree, error) {
	if len(leafHashesHex) == 0 {
		return nil, pbierr.New(pbierr.InvalidStructure, "cannot build a merkle tree over zero leaves")
	}

	leaves := make([][32]byte, len(leafHashesHex))
	for i, h := range leafHashesHex {
		b, err := hex.DecodeString(h)
		if err != nil || len(b) != 32 {
			return nil, pbierr.Newf(pbierr.InvalidStructure, "leaf %d is not a 64-hex sha256 digest", i)
		}
		copy(leaves[i][:], b)
	}

	levels := [][][32]byte{leaves}
	cur := leaves
	for len(cur) > 1 {
		next := make([][32]byte, 0, (len(cur)+1)/2)
		for i := 0; i < len(cur); i += 2 {
			if i+1 < len(cur) {
				next = append(next, nodeHash(cur[i], cur[i+1]))
			} else {
				// odd tail: promote the last element unchanged
				next = append(next, cur[i])
			}
		}
		levels = append(levels, next)
		cur = next
	}

	return &Tree{
		Leaves: leaves,
		Levels: levels,
		Root:   hex.EncodeToString(cur[0][:]),
	}, nil
}

func nodeHash(left, right [32]byte) [32]byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return sha256.Sum256(buf)
}

// Siblings returns the sibling path for leaf index i, bottom to top — the
// same sequence a Proof.Siblings field carries. A level at which the node is
// an odd tail contributes no entry, so the length is at most
// ceil(log2(count)); it is empty for a single-leaf tree.
func (t *Tree) Siblings(i int) ([]Sibling, error) {
	if i < 0 || i >= len(t.Leaves) {
		return nil, pbierr.Newf(pbierr.InvalidStructure, "leaf index %d out of range", i)
	}
	var path []Sibling
	idx := i
	for level := 0; level < len(t.Levels)-1; level++ {
		cur := t.Levels[level]
		isRight := idx%2 == 1
		var siblingIdx int
		if isRight {
			siblingIdx = idx - 1
		} else {
			siblingIdx = idx + 1
		}
		if siblingIdx < len(cur) {
			side := "R" // sibling sits to the right of current (current is the left child)
			if isRight {
				side = "L" // sibling sits to the left of current (current is the right child)
			}
			path = append(path, Sibling{
				Side: side,
				Hash: hex.EncodeToString(cur[siblingIdx][:]),
			})
		}
		// odd-tail promotion: no sibling recorded for this level
		idx = idx / 2
	}
	return path, nil
}

// Sibling is one step of a Merkle inclusion proof.
type Sibling struct {
	Side string `json:"side"` // "L" or "R": which side the SIBLING sits on
	Hash string `json:"hash"`
}
