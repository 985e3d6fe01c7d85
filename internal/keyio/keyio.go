// Package keyio loads the PEM-encoded private keys the sealing and
// trust-bundle CLIs operate on. Like internal/obslog and pkg/config, it is
// built on the standard library rather than a third-party package:
// no library in this lineage's dependency set offers a PEM/PKCS8 loader, and
// crypto/x509 is the idiomatic, minimal-surface way any Go program reads a
// private key off disk.
package keyio

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/kojibai/pbi-core/pkg/jwk"
	"github.com/kojibai/pbi-core/pkg/signing"
)

// LoadSigner reads a PKCS8 PEM private key and builds the signing.Signer
// matching alg ("es256" or "ed25519"), plus the corresponding public JWK.
func LoadSigner(pemBytes []byte, alg string) (signing.Signer, jwk.JWK, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, nil, fmt.Errorf("keyio: no PEM block found")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("keyio: parse PKCS8 private key: %w", err)
	}

	switch alg {
	case signing.AlgES256:
		ecKey, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, nil, fmt.Errorf("keyio: --alg es256 but the PEM key is not an ECDSA key")
		}
		pub, err := jwk.FromECDSA(&ecKey.PublicKey)
		if err != nil {
			return nil, nil, err
		}
		return &signing.ES256Signer{Priv: ecKey}, pub, nil
	case signing.AlgEd25519:
		edKey, ok := key.(ed25519.PrivateKey)
		if !ok {
			return nil, nil, fmt.Errorf("keyio: --alg ed25519 but the PEM key is not an Ed25519 key")
		}
		pub, err := jwk.FromEd25519(edKey.Public().(ed25519.PublicKey))
		if err != nil {
			return nil, nil, err
		}
		return &signing.Ed25519Signer{Priv: edKey}, pub, nil
	default:
		return nil, nil, fmt.Errorf("keyio: unknown --alg %q", alg)
	}
}
