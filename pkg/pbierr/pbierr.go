// Package pbierr defines the closed set of structured verification error
// codes shared by every verification layer (receipt, pack, trust).
//
// Errors here are values, not exceptions: callers compare Code, never the
// message string, and plumbing failures (I/O, malformed PEM, connectivity)
// are kept distinct by using plain wrapped errors instead of *VerifyError.
package pbierr

import (
	"errors"
	"fmt"
)

// Code is a member of the closed verification-result vocabulary.
type Code string

const (
	// Structural
	InvalidStructure Code = "invalid_structure"
	VersionMismatch  Code = "version_mismatch"
	NonfiniteNumber  Code = "nonfinite_number"

	// Semantic (receipt)
	WebauthnTypeMismatch  Code = "webauthn_type_mismatch"
	ChallengeMismatch     Code = "challenge_mismatch"
	OriginNotAllowed      Code = "origin_not_allowed"
	RpIDNotAllowed        Code = "rpId_not_allowed"
	FlagsPolicyViolation  Code = "flags_policy_violation"
	ActionHashMismatch    Code = "action_hash_mismatch"
	CredentialUnknown     Code = "credential_unknown"
	SignatureInvalid      Code = "signature_invalid"
	ChallengeUnknown      Code = "challenge_unknown"
	ChallengeExpired      Code = "challenge_expired"
	ChallengeAlreadyUsed  Code = "challenge_already_used"

	// Trust / pack
	MerkleRootMismatch       Code = "merkle_root_mismatch"
	PackIDMismatch           Code = "pack_id_mismatch"
	ManifestFileHashMismatch Code = "manifest_file_hash_mismatch"
	IssuerSignatureInvalid   Code = "issuer_signature_invalid"
	IssuerUntrusted          Code = "issuer_untrusted"
	IssuerRevoked            Code = "issuer_revoked"
	IssuerNotYetValid        Code = "issuer_not_yet_valid"
	IssuerExpired            Code = "issuer_expired"
	IssuerConstraintMismatch Code = "issuer_constraint_mismatch"
	AttestorUntrusted        Code = "attestor_untrusted"
	AttestorRevoked          Code = "attestor_revoked"
	AttestorKidMismatch      Code = "attestor_kid_mismatch"
	AttestorNotYetValid      Code = "attestor_not_yet_valid"
	AttestorExpired          Code = "attestor_expired"
)

// VerifyError is the structured, closed-vocabulary failure returned by every
// public verification operation. Detail is a free-form human string and must
// never be parsed by callers.
type VerifyError struct {
	Code   Code
	Detail string
}

func New(code Code, detail string) *VerifyError {
	return &VerifyError{Code: code, Detail: detail}
}

func Newf(code Code, format string, args ...interface{}) *VerifyError {
	return &VerifyError{Code: code, Detail: fmt.Sprintf(format, args...)}
}

func (e *VerifyError) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// CodeOf uses errors.As to recover just the code from a *VerifyError
// anywhere in err's chain.
func CodeOf(err error) (Code, bool) {
	var ve *VerifyError
	if !errors.As(err, &ve) {
		return "", false
	}
	return ve.Code, true
}
