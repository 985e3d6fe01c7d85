// Package conformance drives a fixed corpus of receipt-verification cases
// through either the built-in verifier or an external subprocess, and
// compares outcomes against a committed vector file so independent
// implementations can be checked byte-for-byte against this one.
package conformance

import (
	"encoding/json"
	"fmt"

	"github.com/kojibai/pbi-core/pkg/jwk"
	"github.com/kojibai/pbi-core/pkg/receipt"
)

const VectorVersion = "pbi-conf-1.0"

// Expect is a case's expected outcome: either {result:"ok"} or
// {result:"error", code}.
type Expect struct {
	Result string `json:"result"`
	Code   string `json:"code,omitempty"`
}

// Case is one row of a vector file.
type Case struct {
	Name      string          `json:"name"`
	Desc      string          `json:"desc"`
	RpID      string          `json:"rpId"`
	Origin    string          `json:"origin"`
	Action    json.RawMessage `json:"action,omitempty"`
	Receipt   json.RawMessage `json:"receipt"`
	PubKeyJwk jwk.JWK         `json:"pubKeyJwk"`
	Expect    Expect          `json:"expect"`
}

// VectorFile is a committed corpus of conformance cases.
type VectorFile struct {
	Ver       string    `json:"ver"`
	Spec      string    `json:"spec"`
	CreatedAt string    `json:"createdAt"`
	Cases     []Case    `json:"cases"`
}

// ParseVectorFile decodes and validates the top-level shape of a vector
// file; it does not validate individual cases, which happens as each one
// runs.
func ParseVectorFile(raw []byte) (*VectorFile, error) {
	var vf VectorFile
	if err := json.Unmarshal(raw, &vf); err != nil {
		return nil, fmt.Errorf("conformance: parse vector file: %w", err)
	}
	if vf.Ver != VectorVersion {
		return nil, fmt.Errorf("conformance: vector file ver must be %q, got %q", VectorVersion, vf.Ver)
	}
	return &vf, nil
}

// VerifierInput is the normalized per-case input shared by the built-in and
// external verifier paths, and is exactly the external wire contract's
// stdin object.
type VerifierInput struct {
	RpID      string          `json:"rpId"`
	Origin    string          `json:"origin"`
	Action    json.RawMessage `json:"action,omitempty"`
	Receipt   json.RawMessage `json:"receipt"`
	PubKeyJwk jwk.JWK         `json:"pubKeyJwk"`
}

func (c Case) verifierInput() VerifierInput {
	return VerifierInput{
		RpID:      c.RpID,
		Origin:    c.Origin,
		Action:    c.Action,
		Receipt:   c.Receipt,
		PubKeyJwk: c.PubKeyJwk,
	}
}

// receiptPolicy builds the narrow policy implied by a case's rpId/origin:
// the default flags plus single-entry allow lists. BuiltinVerifier does not
// call it; it builds its own policy from the verifier input.
func (c Case) receiptPolicy() receipt.Policy {
	p := receipt.DefaultPolicy()
	p.RpIDAllowList = []string{c.RpID}
	p.OriginAllowList = []string{c.Origin}
	return p
}
