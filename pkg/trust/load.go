package trust

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kojibai/pbi-core/pkg/version"
)

// LoadRoots parses a trust-roots document, accepting either JSON or YAML
// (detected by the first non-whitespace byte; YAML is converted to the same
// typed struct before anything is hashed or compared). Every entry's
// declared keyId is checked against SHA-256(canonical(pubKeyJwk)).
func LoadRoots(raw []byte, path string) (*Roots, error) {
	var roots Roots
	if looksLikeJSON(raw) {
		if err := json.Unmarshal(raw, &roots); err != nil {
			return nil, fmt.Errorf("trust: parse %s as JSON: %w", path, err)
		}
	} else {
		var doc interface{}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("trust: parse %s as YAML: %w", path, err)
		}
		asJSON, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("trust: convert %s from YAML: %w", path, err)
		}
		if err := json.Unmarshal(asJSON, &roots); err != nil {
			return nil, fmt.Errorf("trust: parse %s as YAML: %w", path, err)
		}
	}
	if err := version.Compatible(roots.Ver, RootsVersionPrefix, RootsVersionConstraint); err != nil {
		if attErr := version.Compatible(roots.Ver, BundleVersionPrefix, BundleVersionConstraint); attErr != nil {
			return nil, fmt.Errorf("trust: %s: %w", path, err)
		}
	}

	for _, group := range [][]KeyEntry{roots.TrustedIssuers, roots.TrustedAttestors} {
		for _, entry := range group {
			keyID, err := entry.PubKeyJwk.KeyID()
			if err != nil {
				return nil, fmt.Errorf("trust: %s: entry %q: %w", path, entry.KeyID, err)
			}
			if keyID != entry.KeyID {
				return nil, fmt.Errorf("trust: %s: declared keyId %q does not match SHA-256(canonical(pubKeyJwk)) %q", path, entry.KeyID, keyID)
			}
		}
	}

	return &roots, nil
}

// MergeRoots combines multiple loaded roots documents (as when a CLI
// accepts repeated --trust flags) into a single Roots value.
func MergeRoots(all ...*Roots) *Roots {
	merged := &Roots{Ver: RootsVersion}
	for _, r := range all {
		if r == nil {
			continue
		}
		merged.TrustedIssuers = append(merged.TrustedIssuers, r.TrustedIssuers...)
		merged.TrustedAttestors = append(merged.TrustedAttestors, r.TrustedAttestors...)
		merged.RevokedKeyIDs = append(merged.RevokedKeyIDs, r.RevokedKeyIDs...)
		merged.Revocations = append(merged.Revocations, r.Revocations...)
		if r.Constraint != "" {
			if merged.Constraint != "" && merged.Constraint != r.Constraint {
				merged.Constraint = merged.Constraint + " && (" + r.Constraint + ")"
			} else {
				merged.Constraint = r.Constraint
			}
		}
	}
	return merged
}

func looksLikeJSON(raw []byte) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}
