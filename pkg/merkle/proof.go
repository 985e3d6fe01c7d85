package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/kojibai/pbi-core/pkg/pbierr"
)

// Proof is the offline-verifiable per-leaf slice of a tree: the leaf's own
// hash, its index, and the sibling path needed to fold back up to the root.
type Proof struct {
	LeafHash string    `json:"leafHash"`
	Index    int       `json:"index"`
	Root     string     `json:"root"`
	Siblings []Sibling `json:"siblings"`
}

// GenerateProof extracts the inclusion proof for leaf index i.
func GenerateProof(t *Tree, i int) (*Proof, error) {
	siblings, err := t.Siblings(i)
	if err != nil {
		return nil, err
	}
	return &Proof{
		LeafHash: hex.EncodeToString(t.Leaves[i][:]),
		Index:    i,
		Root:     t.Root,
		Siblings: siblings,
	}, nil
}

// Fold recomputes the root from a leaf hash and its sibling path, folding
// left/right per each step's declared Side (the position of the SIBLING,
// not of the current accumulator).
func Fold(leafHashHex string, siblings []Sibling) (string, error) {
	current, err := hex.DecodeString(leafHashHex)
	if err != nil || len(current) != 32 {
		return "", pbierr.New(pbierr.InvalidStructure, "leaf hash must be a 64-hex sha256 digest")
	}

	for _, s := range siblings {
		sib, err := hex.DecodeString(s.Hash)
		if err != nil || len(sib) != 32 {
			return "", pbierr.New(pbierr.InvalidStructure, "sibling hash must be a 64-hex sha256 digest")
		}
		var combined []byte
		switch s.Side {
		case "L":
			combined = append(append([]byte{}, sib...), current...)
		case "R":
			combined = append(append([]byte{}, current...), sib...)
		default:
			return "", pbierr.Newf(pbierr.InvalidStructure, "invalid sibling side %q", s.Side)
		}
		h := sha256.Sum256(combined)
		current = h[:]
	}

	return hex.EncodeToString(current), nil
}

// VerifyProof checks that folding p's leaf hash through its sibling path
// yields expectedRoot.
func VerifyProof(p *Proof, expectedRoot string) (bool, error) {
	root, err := Fold(p.LeafHash, p.Siblings)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(root, expectedRoot), nil
}
