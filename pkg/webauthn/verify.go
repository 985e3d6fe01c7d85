package webauthn

import (
	"crypto/ecdsa"
	"crypto/sha256"

	"github.com/kojibai/pbi-core/pkg/pbierr"
)

// VerifyAssertionSignature checks the ES256 (ECDSA P-256 over SHA-256,
// ASN.1 DER signature) assertion signature over authenticatorData ||
// SHA-256(clientDataJSON), as WebAuthn mandates. Raw/IEEE-P1363 signatures
// are never accepted; only DER.
func VerifyAssertionSignature(pub *ecdsa.PublicKey, authenticatorData, clientDataJSON, sig []byte) error {
	cdHash := sha256.Sum256(clientDataJSON)
	signedData := make([]byte, 0, len(authenticatorData)+len(cdHash))
	signedData = append(signedData, authenticatorData...)
	signedData = append(signedData, cdHash[:]...)

	digest := sha256.Sum256(signedData)
	if !ecdsa.VerifyASN1(pub, digest[:], sig) {
		return pbierr.New(pbierr.SignatureInvalid, "ECDSA assertion signature verification failed")
	}
	return nil
}
