// Package jwk marshals and parses the pubKeyJwk fields that appear
// throughout the data model (credentials, issuer/attestor trust roots) as
// JSON Web Keys, per RFC 7517/8037, for EC P-256 and OKP Ed25519 keys.
//
// Marshaling is delegated to a JOSE library rather than hand-rolled structs
// so member ordering, base64url padding, and key-type discrimination match
// what a production JWKS endpoint would emit.
package jwk

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"encoding/json"
	"fmt"

	josejwk "github.com/go-jose/go-jose/v4"

	"github.com/kojibai/pbi-core/pkg/enc"
	"github.com/kojibai/pbi-core/pkg/pbierr"
)

// JWK is the canonicalizable JSON form of a public key: a plain
// map[string]interface{} so it flows through canon.Canonicalize unchanged
// and its hash (the keyId, per the trust model) is reproducible regardless
// of which concrete key type it wraps.
type JWK map[string]interface{}

// FromECDSA converts an EC P-256 public key into canonical JWK form.
func FromECDSA(pub *ecdsa.PublicKey) (JWK, error) {
	if pub.Curve != elliptic.P256() {
		return nil, pbierr.New(pbierr.InvalidStructure, "only P-256 EC keys are supported")
	}
	raw, err := (&josejwk.JSONWebKey{Key: pub}).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("jwk: marshal ec key: %w", err)
	}
	return toCanonicalMap(raw)
}

// FromEd25519 converts an Ed25519 public key into canonical JWK (OKP) form.
func FromEd25519(pub ed25519.PublicKey) (JWK, error) {
	raw, err := (&josejwk.JSONWebKey{Key: pub}).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("jwk: marshal ed25519 key: %w", err)
	}
	return toCanonicalMap(raw)
}

func toCanonicalMap(raw []byte) (JWK, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("jwk: decode intermediate: %w", err)
	}
	return JWK(m), nil
}

// ECDSAPublicKey recovers a P-256 public key from a JWK, validating
// kty=="EC" and crv=="P-256" per the receipt verifier's edge policy.
func (k JWK) ECDSAPublicKey() (*ecdsa.PublicKey, error) {
	if kty, _ := k["kty"].(string); kty != "EC" {
		return nil, pbierr.Newf(pbierr.InvalidStructure, "jwk: kty must be EC, got %q", kty)
	}
	if crv, _ := k["crv"].(string); crv != "P-256" {
		return nil, pbierr.Newf(pbierr.InvalidStructure, "jwk: crv must be P-256, got %q", crv)
	}
	raw, err := json.Marshal(map[string]interface{}(k))
	if err != nil {
		return nil, fmt.Errorf("jwk: re-marshal: %w", err)
	}
	var jwk josejwk.JSONWebKey
	if err := jwk.UnmarshalJSON(raw); err != nil {
		return nil, pbierr.Newf(pbierr.InvalidStructure, "jwk: parse EC key: %v", err)
	}
	pub, ok := jwk.Key.(*ecdsa.PublicKey)
	if !ok {
		return nil, pbierr.New(pbierr.InvalidStructure, "jwk: key is not an ECDSA public key")
	}
	return pub, nil
}

// Ed25519PublicKey recovers an Ed25519 public key from a JWK, validating
// kty=="OKP" and crv=="Ed25519".
func (k JWK) Ed25519PublicKey() (ed25519.PublicKey, error) {
	if kty, _ := k["kty"].(string); kty != "OKP" {
		return nil, pbierr.Newf(pbierr.InvalidStructure, "jwk: kty must be OKP, got %q", kty)
	}
	if crv, _ := k["crv"].(string); crv != "Ed25519" {
		return nil, pbierr.Newf(pbierr.InvalidStructure, "jwk: crv must be Ed25519, got %q", crv)
	}
	raw, err := json.Marshal(map[string]interface{}(k))
	if err != nil {
		return nil, fmt.Errorf("jwk: re-marshal: %w", err)
	}
	var jwk josejwk.JSONWebKey
	if err := jwk.UnmarshalJSON(raw); err != nil {
		return nil, pbierr.Newf(pbierr.InvalidStructure, "jwk: parse OKP key: %v", err)
	}
	pub, ok := jwk.Key.(ed25519.PublicKey)
	if !ok {
		return nil, pbierr.New(pbierr.InvalidStructure, "jwk: key is not an Ed25519 public key")
	}
	return pub, nil
}

// KeyID computes the trust-model keyId: SHA-256(canonical(jwk)).
func (k JWK) KeyID() (string, error) {
	return enc.CanonicalHash(map[string]interface{}(k))
}
