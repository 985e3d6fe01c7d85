package trust

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/kojibai/pbi-core/pkg/enc"
	"github.com/kojibai/pbi-core/pkg/jwk"
	"github.com/kojibai/pbi-core/pkg/signing"
	"github.com/kojibai/pbi-core/pkg/version"
)

const BundleVersion = "pbi-attestor-trust-1.0"

// BundleVersionPrefix and BundleVersionConstraint let VerifyBundleSignature
// accept any compatible minor release of the bundle document.
const BundleVersionPrefix = "pbi-attestor-trust"
const BundleVersionConstraint = "^1.0"

// BundleSig is a root key's signature over a bundle's roots document,
// structurally identical to a pack's issuerSig block.
type BundleSig struct {
	Alg       string    `json:"alg"`
	KeyID     string    `json:"keyId"`
	SignedAt  time.Time `json:"signedAt"`
	PubKeyJwk jwk.JWK   `json:"pubKeyJwk"`
	SigB64url string    `json:"sig_b64url"`
}

// SignedBundle is a distributable attestor trust-roots document, minted and
// signed by one of a deployment's root keys so operators can rotate
// attestor trust without redistributing a raw, unsigned roots file.
type SignedBundle struct {
	Ver   string     `json:"ver"`
	Roots *Roots     `json:"roots"`
	Sig   *BundleSig `json:"sig"`
}

// payload returns a copy of b with only Ver/Roots set, for the signing
// payload; the bundle signature never covers itself.
func (b *SignedBundle) payload() *SignedBundle {
	return &SignedBundle{Ver: b.Ver, Roots: b.Roots}
}

// SignBundle signs roots with signer, producing a distributable bundle.
func SignBundle(roots *Roots, signer signing.Signer, pubKeyJwk jwk.JWK, signedAt time.Time) (*SignedBundle, error) {
	keyID, err := pubKeyJwk.KeyID()
	if err != nil {
		return nil, err
	}
	b := &SignedBundle{Ver: BundleVersion, Roots: roots}
	payload, err := enc.Canonicalize(b.payload())
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(payload)
	if err != nil {
		return nil, err
	}
	b.Sig = &BundleSig{
		Alg:       signer.Alg(),
		KeyID:     keyID,
		SignedAt:  signedAt,
		PubKeyJwk: pubKeyJwk,
		SigB64url: enc.B64URLEncode(sig),
	}
	return b, nil
}

// VerifyBundleSignature checks that bundle was signed by one of rootKeys'
// trusted-issuer entries (the root-key list is itself a Roots document, so
// deployments can rotate root keys with the same rotation/revocation
// machinery as issuer/attestor keys).
func VerifyBundleSignature(bundle *SignedBundle, rootKeys *Roots, at time.Time) error {
	if err := version.Compatible(bundle.Ver, BundleVersionPrefix, BundleVersionConstraint); err != nil {
		return fmt.Errorf("trust: %w", err)
	}
	if bundle.Sig == nil {
		return fmt.Errorf("trust: bundle has no sig block")
	}

	engine := NewEngine(rootKeys)
	if err := engine.Evaluate(EvalInput{Kind: KindIssuer, KeyID: bundle.Sig.KeyID, At: at}); err != nil {
		return err
	}

	var ecdsaPub *ecdsa.PublicKey
	var ed25519Pub ed25519.PublicKey
	var err error
	switch bundle.Sig.Alg {
	case signing.AlgES256:
		ecdsaPub, err = bundle.Sig.PubKeyJwk.ECDSAPublicKey()
	case signing.AlgEd25519:
		ed25519Pub, err = bundle.Sig.PubKeyJwk.Ed25519PublicKey()
	default:
		return fmt.Errorf("trust: unknown bundle sig alg %q", bundle.Sig.Alg)
	}
	if err != nil {
		return err
	}

	verifier, err := signing.VerifierFor(bundle.Sig.Alg, ecdsaPub, ed25519Pub)
	if err != nil {
		return err
	}

	sigBytes, err := enc.B64URLDecode(bundle.Sig.SigB64url)
	if err != nil {
		return fmt.Errorf("trust: bundle sig_b64url: %w", err)
	}
	payload, err := enc.Canonicalize(bundle.payload())
	if err != nil {
		return err
	}
	return verifier.Verify(payload, sigBytes)
}
