//go:build property
// +build property

package merkle_test

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kojibai/pbi-core/pkg/merkle"
)

func hexLeaf(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// TestBuild_DeterministicRoot verifies Build over the same leaves always
// folds to the same root.
func TestBuild_DeterministicRoot(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("building the same leaves twice yields the same root", prop.ForAll(
		func(seeds []string) bool {
			if len(seeds) == 0 {
				return true
			}
			leaves := make([]string, len(seeds))
			for i, s := range seeds {
				leaves[i] = hexLeaf(s)
			}

			t1, err1 := merkle.Build(leaves)
			t2, err2 := merkle.Build(leaves)
			if err1 != nil || err2 != nil {
				return err1 != nil && err2 != nil
			}
			return t1.Root == t2.Root
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestGenerateProof_AlwaysFolds verifies every leaf's proof folds back to
// the tree's own root, for any number of leaves.
func TestGenerateProof_AlwaysFolds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("every generated proof folds back to the tree root", prop.ForAll(
		func(seeds []string) bool {
			if len(seeds) == 0 {
				return true
			}
			leaves := make([]string, len(seeds))
			for i, s := range seeds {
				leaves[i] = hexLeaf(s)
			}

			tree, err := merkle.Build(leaves)
			if err != nil {
				return false
			}
			for i := range leaves {
				proof, err := merkle.GenerateProof(tree, i)
				if err != nil {
					return false
				}
				folded, err := merkle.Fold(proof.LeafHash, proof.Siblings)
				if err != nil || folded != tree.Root {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
