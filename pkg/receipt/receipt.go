// Package receipt implements the Receipt Verifier: the heart of the
// system. Given a receipt, an optional action, a verification policy, and a
// credential store, it decides whether a human presence ceremony provably
// occurred for that action.
package receipt

import "github.com/kojibai/pbi-core/pkg/enc"

const Version = "pbi-receipt-1.0"

// VersionPrefix and VersionConstraint let Verify accept any receipt within
// the same compatible major line instead of pinning to Version exactly.
const VersionPrefix = "pbi-receipt"
const VersionConstraint = "^1.0"

const AlgWebauthnES256 = "webauthn-es256"

// AuthorSig is the WebAuthn assertion embedded in a receipt. All binary
// fields are unpadded base64url strings.
type AuthorSig struct {
	Alg               string `json:"alg"`
	CredID            string `json:"credId"`
	AuthenticatorData string `json:"authenticatorData"`
	ClientDataJSON    string `json:"clientDataJSON"`
	Signature         string `json:"signature"`
}

// Receipt is the signed evidence of a presence ceremony.
type Receipt struct {
	Ver         string    `json:"ver"`
	ChallengeID string    `json:"challengeId"`
	Challenge   string    `json:"challenge"`
	ActionHash  string    `json:"actionHash"`
	Aud         string    `json:"aud"`
	Purpose     string    `json:"purpose"`
	AuthorSig   AuthorSig `json:"authorSig"`
}

// Policy is the set of constraints a verifier must enforce.
type Policy struct {
	RpIDAllowList   []string `json:"rpIdAllowList"`
	OriginAllowList []string `json:"originAllowList"`
	RequireUP       bool     `json:"requireUP"`
	RequireUV       bool     `json:"requireUV"`
}

// DefaultPolicy returns a policy with requireUP and requireUV both true;
// callers still need to supply the allowlists.
func DefaultPolicy() Policy {
	return Policy{RequireUP: true, RequireUV: true}
}

// Hash returns receiptHash := SHA-256(canonical(receipt)) as 64 lowercase
// hex characters.
func Hash(r *Receipt) (string, error) {
	return enc.CanonicalHash(r)
}
