// Package signing provides the issuer-signature algorithm registry.
//
// issuerSig.alg is a field-declared value (es256 or ed25519); this package
// dispatches on it at both seal and verify time instead of hardcoding
// either algorithm, per the resolved open question on issuer signatures.
package signing

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"

	"github.com/kojibai/pbi-core/pkg/pbierr"
)

const (
	AlgES256   = "es256"
	AlgEd25519 = "ed25519"
)

// Signer produces a signature over arbitrary canonical bytes.
type Signer interface {
	Alg() string
	Sign(data []byte) ([]byte, error)
}

// Verifier checks a signature over arbitrary canonical bytes.
type Verifier interface {
	Alg() string
	Verify(data, sig []byte) error
}

// ES256Signer signs with ECDSA P-256 over SHA-256, ASN.1 DER output — the
// WebAuthn/issuer convention used throughout this system.
type ES256Signer struct {
	Priv *ecdsa.PrivateKey
}

func (s *ES256Signer) Alg() string { return AlgES256 }

func (s *ES256Signer) Sign(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	sig, err := ecdsa.SignASN1(rand.Reader, s.Priv, digest[:])
	if err != nil {
		return nil, err
	}
	return sig, nil
}

// ES256Verifier verifies ASN.1 DER ECDSA P-256 signatures.
type ES256Verifier struct {
	Pub *ecdsa.PublicKey
}

func (v *ES256Verifier) Alg() string { return AlgES256 }

func (v *ES256Verifier) Verify(data, sig []byte) error {
	digest := sha256.Sum256(data)
	if !ecdsa.VerifyASN1(v.Pub, digest[:], sig) {
		return pbierr.New(pbierr.IssuerSignatureInvalid, "ES256 signature verification failed")
	}
	return nil
}

// Ed25519Signer signs raw data directly (Ed25519 hashes internally).
type Ed25519Signer struct {
	Priv ed25519.PrivateKey
}

func (s *Ed25519Signer) Alg() string { return AlgEd25519 }

func (s *Ed25519Signer) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(s.Priv, data), nil
}

// Ed25519Verifier verifies raw Ed25519 signatures.
type Ed25519Verifier struct {
	Pub ed25519.PublicKey
}

func (v *Ed25519Verifier) Alg() string { return AlgEd25519 }

func (v *Ed25519Verifier) Verify(data, sig []byte) error {
	if !ed25519.Verify(v.Pub, data, sig) {
		return pbierr.New(pbierr.IssuerSignatureInvalid, "Ed25519 signature verification failed")
	}
	return nil
}

// VerifierFor builds the verifier matching alg and pub, refusing any value
// outside the closed {es256, ed25519} set.
func VerifierFor(alg string, ecdsaPub *ecdsa.PublicKey, ed25519Pub ed25519.PublicKey) (Verifier, error) {
	switch alg {
	case AlgES256:
		if ecdsaPub == nil {
			return nil, pbierr.New(pbierr.InvalidStructure, "es256 issuerSig requires an EC public key")
		}
		return &ES256Verifier{Pub: ecdsaPub}, nil
	case AlgEd25519:
		if ed25519Pub == nil {
			return nil, pbierr.New(pbierr.InvalidStructure, "ed25519 issuerSig requires an OKP public key")
		}
		return &Ed25519Verifier{Pub: ed25519Pub}, nil
	default:
		return nil, pbierr.Newf(pbierr.InvalidStructure, "unknown issuerSig.alg %q", alg)
	}
}
