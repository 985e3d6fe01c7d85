// Package version checks the "ver" discriminators carried on every wire
// document (receipts, actions, packs, proofs, trust roots, bundles) against
// a semantic-version constraint instead of a single hardcoded string, the
// way a pack registry tracks installed-pack versions and enforces
// compatibility ranges rather than exact-match pinning.
package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Split separates a discriminator like "pbi-pack-1.1" into its family
// prefix ("pbi-pack") and trailing semantic-version suffix ("1.1"). The
// suffix is always the text after the last hyphen.
func Split(discriminator string) (prefix string, suffix string, ok bool) {
	i := strings.LastIndex(discriminator, "-")
	if i < 0 || i == len(discriminator)-1 {
		return "", "", false
	}
	return discriminator[:i], discriminator[i+1:], true
}

// Compatible reports whether discriminator belongs to wantPrefix and its
// version suffix satisfies constraint (e.g. "^1.0"). It returns an error
// describing why not, for direct use in a VerifyError Detail.
func Compatible(discriminator, wantPrefix, constraint string) error {
	prefix, suffix, ok := Split(discriminator)
	if !ok || prefix != wantPrefix {
		return fmt.Errorf("version: %q is not a %s discriminator", discriminator, wantPrefix)
	}
	v, err := semver.NewVersion(suffix)
	if err != nil {
		return fmt.Errorf("version: %q has an invalid semantic version: %w", discriminator, err)
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("version: invalid constraint %q: %w", constraint, err)
	}
	if !c.Check(v) {
		return fmt.Errorf("version: %q does not satisfy %s", discriminator, constraint)
	}
	return nil
}
