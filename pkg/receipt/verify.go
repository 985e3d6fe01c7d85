package receipt

import (
	"context"
	"crypto/sha256"
	"strings"

	"github.com/kojibai/pbi-core/pkg/action"
	"github.com/kojibai/pbi-core/pkg/capability"
	"github.com/kojibai/pbi-core/pkg/enc"
	"github.com/kojibai/pbi-core/pkg/pbierr"
	"github.com/kojibai/pbi-core/pkg/version"
	"github.com/kojibai/pbi-core/pkg/webauthn"
)

// VerifyInput bundles everything a single Verify call needs.
type VerifyInput struct {
	Receipt        *Receipt
	Action         *action.Action // optional
	Policy         Policy
	Credentials    capability.CredentialStore
	Challenges     capability.ChallengeStore // optional, online mode only
}

// Result is the successful outcome of a Verify call.
type Result struct {
	OK     bool
	CredID string
}

// Verify runs the normative ordering from structural validation through
// signature verification (and, in online mode, challenge consumption).
// Early checks never depend on key material, so failures never leak timing
// information about cryptographic state.
func Verify(ctx context.Context, in VerifyInput) (*Result, error) {
	r := in.Receipt

	// 1. Structural validation.
	if err := structuralCheck(r); err != nil {
		return nil, err
	}

	// 2. Version.
	if err := version.Compatible(r.Ver, VersionPrefix, VersionConstraint); err != nil {
		return nil, pbierr.Newf(pbierr.VersionMismatch, "receipt.ver %q is not compatible with %s %s: %v", r.Ver, VersionPrefix, VersionConstraint, err)
	}

	// 3. Action-hash recomputation (optional).
	if in.Action != nil {
		h, err := action.Hash(in.Action)
		if err != nil {
			return nil, err
		}
		if h != r.ActionHash {
			return nil, pbierr.Newf(pbierr.ActionHashMismatch, "computed actionHash %s != receipt.actionHash %s", h, r.ActionHash)
		}
	}

	// 4. Parse clientDataJSON.
	cdBytes, err := enc.B64URLDecode(r.AuthorSig.ClientDataJSON)
	if err != nil {
		return nil, pbierr.New(pbierr.InvalidStructure, "authorSig.clientDataJSON is not valid base64url")
	}
	cd, err := webauthn.ParseClientData(cdBytes)
	if err != nil {
		return nil, err
	}

	// 5. Type check.
	if cd.Type != webauthn.TypeGet {
		return nil, pbierr.Newf(pbierr.WebauthnTypeMismatch, "clientDataJSON.type must be %q, got %q", webauthn.TypeGet, cd.Type)
	}

	// 6. Challenge check.
	if cd.Challenge != r.Challenge {
		return nil, pbierr.New(pbierr.ChallengeMismatch, "clientDataJSON.challenge does not match receipt.challenge")
	}

	// 7. Origin check (exact string match; policy entries are trimmed, the
	// parsed origin is not).
	if !originAllowed(cd.Origin, in.Policy.OriginAllowList) {
		return nil, pbierr.Newf(pbierr.OriginNotAllowed, "origin %q is not in the allow list", cd.Origin)
	}

	// 8. Parse authenticatorData.
	adBytes, err := enc.B64URLDecode(r.AuthorSig.AuthenticatorData)
	if err != nil {
		return nil, pbierr.New(pbierr.InvalidStructure, "authorSig.authenticatorData is not valid base64url")
	}
	ad, err := webauthn.ParseAuthenticatorData(adBytes)
	if err != nil {
		return nil, err
	}

	// 9. rpId check.
	if !rpIDAllowed(ad.RPIDHash, in.Policy.RpIDAllowList) {
		return nil, pbierr.New(pbierr.RpIDNotAllowed, "authenticatorData rpIdHash matches no allow-listed rpId")
	}

	// 10. Flags check.
	if in.Policy.RequireUP && !ad.Flags.UserPresent() {
		return nil, pbierr.New(pbierr.FlagsPolicyViolation, "UP flag required but not set")
	}
	if in.Policy.RequireUV && !ad.Flags.UserVerified() {
		return nil, pbierr.New(pbierr.FlagsPolicyViolation, "UV flag required but not set")
	}

	// 11. Credential lookup.
	key, ok, err := in.Credentials.Lookup(ctx, r.AuthorSig.CredID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pbierr.Newf(pbierr.CredentialUnknown, "credential %q is not registered", r.AuthorSig.CredID)
	}
	pub, err := key.ECDSAPublicKey()
	if err != nil {
		return nil, err
	}

	// 12. Signature verification.
	sigBytes, err := enc.B64URLDecode(r.AuthorSig.Signature)
	if err != nil {
		return nil, pbierr.New(pbierr.InvalidStructure, "authorSig.signature is not valid base64url")
	}
	if err := webauthn.VerifyAssertionSignature(pub, adBytes, cdBytes, sigBytes); err != nil {
		return nil, err
	}

	// 13. Challenge-store mark-consumed (online mode only).
	if in.Challenges != nil {
		state, err := in.Challenges.MarkConsumed(ctx, r.ChallengeID)
		if err != nil {
			return nil, err
		}
		switch state {
		case capability.ChallengeConsumed:
			// consumed by this call — success
		case capability.ChallengeUnknown:
			return nil, pbierr.New(pbierr.ChallengeUnknown, "challenge id not recognised")
		case capability.ChallengeExpired:
			return nil, pbierr.New(pbierr.ChallengeExpired, "challenge is past its deadline")
		case capability.ChallengeIssued:
			return nil, pbierr.New(pbierr.ChallengeAlreadyUsed, "challenge was already consumed")
		default:
			return nil, pbierr.New(pbierr.ChallengeAlreadyUsed, "challenge is not in an issuable state")
		}
	}

	return &Result{OK: true, CredID: r.AuthorSig.CredID}, nil
}

func structuralCheck(r *Receipt) error {
	if r == nil {
		return pbierr.New(pbierr.InvalidStructure, "receipt is nil")
	}
	if r.Ver == "" || r.ChallengeID == "" || r.Challenge == "" || r.ActionHash == "" || r.Aud == "" || r.Purpose == "" {
		return pbierr.New(pbierr.InvalidStructure, "receipt missing required top-level fields")
	}
	if r.AuthorSig.Alg != AlgWebauthnES256 {
		return pbierr.Newf(pbierr.InvalidStructure, "authorSig.alg must be %q, got %q", AlgWebauthnES256, r.AuthorSig.Alg)
	}
	if r.AuthorSig.CredID == "" || r.AuthorSig.AuthenticatorData == "" || r.AuthorSig.ClientDataJSON == "" || r.AuthorSig.Signature == "" {
		return pbierr.New(pbierr.InvalidStructure, "authorSig missing required fields")
	}
	if err := enc.RequireHex64("actionHash", r.ActionHash); err != nil {
		return err
	}
	return nil
}

func originAllowed(origin string, allowList []string) bool {
	for _, o := range allowList {
		if strings.TrimSpace(o) == origin {
			return true
		}
	}
	return false
}

func rpIDAllowed(rpIDHash [32]byte, allowList []string) bool {
	for _, rpID := range allowList {
		h := sha256.Sum256([]byte(rpID))
		if h == rpIDHash {
			return true
		}
	}
	return false
}
