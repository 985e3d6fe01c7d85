// Package trust implements the Trust Policy Engine: resolving an
// issuer/attestor public key to a trust decision under rotation,
// revocation (hard and time-scoped), and validity-window rules.
package trust

import (
	"time"

	"github.com/kojibai/pbi-core/pkg/jwk"
)

// Mode selects the engine's evaluation strictness.
type Mode int

const (
	// ModeNone accepts any signature that verifies (development only).
	ModeNone Mode = iota
	// ModeJWK trusts raw public-JWK files as-is, with no rotation/revocation.
	ModeJWK
	// ModeTrust is the production default: full rotation/revocation/constraints.
	ModeTrust
)

// IssuerConstraint, when attached to a trusted-issuer entry, requires the
// manifest's issuer block to match bit-for-bit.
type IssuerConstraint struct {
	Name string `json:"name"`
	Aud  string `json:"aud"`
}

// KeyEntry is one trusted issuer or attestor key.
type KeyEntry struct {
	KeyID     string            `json:"keyId"`
	PubKeyJwk jwk.JWK           `json:"pubKeyJwk"`
	NotBefore *time.Time        `json:"notBefore,omitempty"`
	NotAfter  *time.Time        `json:"notAfter,omitempty"`
	Issuer    *IssuerConstraint `json:"issuer,omitempty"`
	Kid       string            `json:"kid,omitempty"`
}

// Revocation is a time-scoped revocation entry.
type Revocation struct {
	KeyID     string    `json:"keyId"`
	RevokedAt time.Time `json:"revokedAt"`
	Reason    string    `json:"reason,omitempty"`
}

// RootsVersion is the ver this package writes for a roots document
// (pbi-trust-1.0). LoadRoots also accepts attestor roots files in the
// pbi-attestor-trust family; the two document kinds share one shape and are
// distinguished only by which of TrustedIssuers/TrustedAttestors a
// deployment populates.
const RootsVersion = "pbi-trust-1.0"

// RootsVersionPrefix and RootsVersionConstraint let LoadRoots accept any
// compatible minor release of the roots document instead of pinning to
// RootsVersion exactly.
const RootsVersionPrefix = "pbi-trust"
const RootsVersionConstraint = "^1.0"

// Roots is a pbi-trust-1.0 / pbi-attestor-trust-1.0 document.
type Roots struct {
	Ver              string       `json:"ver"`
	TrustedIssuers   []KeyEntry   `json:"trustedIssuers,omitempty"`
	TrustedAttestors []KeyEntry   `json:"trustedAttestors,omitempty"`
	RevokedKeyIDs    []string     `json:"revokedKeyIds,omitempty"`
	Revocations      []Revocation `json:"revocations,omitempty"`

	// Constraint is an optional supplementary CEL expression: advisory on
	// top of the normative rules, never a replacement.
	Constraint string `json:"constraint,omitempty"`
}
