package receipt

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kojibai/pbi-core/pkg/action"
	"github.com/kojibai/pbi-core/pkg/capability"
	"github.com/kojibai/pbi-core/pkg/enc"
	"github.com/kojibai/pbi-core/pkg/jwk"
	"github.com/kojibai/pbi-core/pkg/pbierr"
)

const (
	testRPID   = "example.com"
	testOrigin = "https://example.com"
)

type stubCredentialStore struct {
	key jwk.JWK
	ok  bool
	err error
}

func (s stubCredentialStore) Lookup(ctx context.Context, credID string) (jwk.JWK, bool, error) {
	return s.key, s.ok, s.err
}

type stubChallengeStore struct {
	state capability.ChallengeState
	err   error
}

func (s stubChallengeStore) MarkConsumed(ctx context.Context, challengeID string) (capability.ChallengeState, error) {
	return s.state, s.err
}

func authDataBytes(t *testing.T, rpID string, flags byte, signCount uint32) []byte {
	t.Helper()
	b := make([]byte, 37)
	rpHash := sha256.Sum256([]byte(rpID))
	copy(b[0:32], rpHash[:])
	b[32] = flags
	b[33] = byte(signCount >> 24)
	b[34] = byte(signCount >> 16)
	b[35] = byte(signCount >> 8)
	b[36] = byte(signCount)
	return b
}

// fixture bundles a valid receipt and the key needed to verify it, so each
// test can mutate one field off the baseline.
type fixture struct {
	priv *ecdsa.PrivateKey
	key  jwk.JWK
	r    *Receipt
}

func buildFixture(t *testing.T) fixture {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	key, err := jwk.FromECDSA(&priv.PublicKey)
	require.NoError(t, err)

	actionHash := "a3f1c2b4d5e6f7890123456789abcdef0123456789abcdef0123456789abcdef"

	clientData := map[string]string{
		"type":      "webauthn.get",
		"challenge": "challenge-abc",
		"origin":    testOrigin,
	}
	cdRaw, err := json.Marshal(clientData)
	require.NoError(t, err)

	authData := authDataBytes(t, testRPID, 0x05, 1)

	cdHash := sha256.Sum256(cdRaw)
	signedData := append(append([]byte{}, authData...), cdHash[:]...)
	digest := sha256.Sum256(signedData)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	require.NoError(t, err)

	r := &Receipt{
		Ver:         Version,
		ChallengeID: "chal-1",
		Challenge:   "challenge-abc",
		ActionHash:  actionHash,
		Aud:         "api.example.com",
		Purpose:     "transfer_funds",
		AuthorSig: AuthorSig{
			Alg:               AlgWebauthnES256,
			CredID:            "cred-1",
			AuthenticatorData: enc.B64URLEncode(authData),
			ClientDataJSON:    enc.B64URLEncode(cdRaw),
			Signature:         enc.B64URLEncode(sig),
		},
	}

	return fixture{priv: priv, key: key, r: r}
}

func (f fixture) policy() Policy {
	return Policy{
		RpIDAllowList:   []string{testRPID},
		OriginAllowList: []string{testOrigin},
		RequireUP:       true,
		RequireUV:       true,
	}
}

func (f fixture) input() VerifyInput {
	return VerifyInput{
		Receipt:     f.r,
		Policy:      f.policy(),
		Credentials: stubCredentialStore{key: f.key, ok: true},
	}
}

func codeOf(t *testing.T, err error) pbierr.Code {
	t.Helper()
	code, ok := pbierr.CodeOf(err)
	require.True(t, ok, "expected a *pbierr.VerifyError, got %T: %v", err, err)
	return code
}

func TestVerify_ValidReceiptSucceeds(t *testing.T) {
	f := buildFixture(t)
	res, err := Verify(context.Background(), f.input())
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "cred-1", res.CredID)
}

func TestVerify_NilReceipt(t *testing.T) {
	f := buildFixture(t)
	in := f.input()
	in.Receipt = nil
	_, err := Verify(context.Background(), in)
	assert.Equal(t, pbierr.InvalidStructure, codeOf(t, err))
}

func TestVerify_MissingTopLevelField(t *testing.T) {
	f := buildFixture(t)
	f.r.Aud = ""
	_, err := Verify(context.Background(), f.input())
	assert.Equal(t, pbierr.InvalidStructure, codeOf(t, err))
}

func TestVerify_WrongAuthorSigAlg(t *testing.T) {
	f := buildFixture(t)
	f.r.AuthorSig.Alg = "rs256"
	_, err := Verify(context.Background(), f.input())
	assert.Equal(t, pbierr.InvalidStructure, codeOf(t, err))
}

func TestVerify_MissingAuthorSigField(t *testing.T) {
	f := buildFixture(t)
	f.r.AuthorSig.CredID = ""
	_, err := Verify(context.Background(), f.input())
	assert.Equal(t, pbierr.InvalidStructure, codeOf(t, err))
}

func TestVerify_MalformedActionHash(t *testing.T) {
	f := buildFixture(t)
	f.r.ActionHash = "not-hex"
	_, err := Verify(context.Background(), f.input())
	assert.Equal(t, pbierr.InvalidStructure, codeOf(t, err))
}

func TestVerify_VersionMismatch(t *testing.T) {
	f := buildFixture(t)
	f.r.Ver = "pbi-receipt-0.9"
	_, err := Verify(context.Background(), f.input())
	assert.Equal(t, pbierr.VersionMismatch, codeOf(t, err))
}

func TestVerify_ActionHashMismatch(t *testing.T) {
	f := buildFixture(t)
	in := f.input()
	in.Action = &action.Action{
		Ver:     action.Version,
		Aud:     "api.example.com",
		Purpose: "transfer_funds",
		Method:  "POST",
		Path:    "/v1/transfers",
		Params:  map[string]interface{}{"amount": 100},
	}
	_, err := Verify(context.Background(), in)
	assert.Equal(t, pbierr.ActionHashMismatch, codeOf(t, err))
}

func TestVerify_ActionHashMatches(t *testing.T) {
	f := buildFixture(t)
	a := &action.Action{
		Ver:     action.Version,
		Aud:     "api.example.com",
		Purpose: "transfer_funds",
		Method:  "POST",
		Path:    "/v1/transfers",
		Params:  map[string]interface{}{"amount": 100},
	}
	h, err := action.Hash(a)
	require.NoError(t, err)
	f.r.ActionHash = h

	in := f.input()
	in.Action = a
	res, err := Verify(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestVerify_InvalidBase64ClientData(t *testing.T) {
	f := buildFixture(t)
	f.r.AuthorSig.ClientDataJSON = "not base64url!!"
	_, err := Verify(context.Background(), f.input())
	assert.Equal(t, pbierr.InvalidStructure, codeOf(t, err))
}

func TestVerify_InvalidBase64AuthenticatorData(t *testing.T) {
	f := buildFixture(t)
	f.r.AuthorSig.AuthenticatorData = "not base64url!!"
	_, err := Verify(context.Background(), f.input())
	assert.Equal(t, pbierr.InvalidStructure, codeOf(t, err))
}

func TestVerify_InvalidBase64Signature(t *testing.T) {
	f := buildFixture(t)
	f.r.AuthorSig.Signature = "not base64url!!"
	_, err := Verify(context.Background(), f.input())
	assert.Equal(t, pbierr.InvalidStructure, codeOf(t, err))
}

func TestVerify_WrongClientDataType(t *testing.T) {
	f := buildFixture(t)
	cdRaw, _ := json.Marshal(map[string]string{
		"type":      "webauthn.create",
		"challenge": "challenge-abc",
		"origin":    testOrigin,
	})
	f.r.AuthorSig.ClientDataJSON = enc.B64URLEncode(cdRaw)
	_, err := Verify(context.Background(), f.input())
	assert.Equal(t, pbierr.WebauthnTypeMismatch, codeOf(t, err))
}

func TestVerify_ChallengeMismatch(t *testing.T) {
	f := buildFixture(t)
	cdRaw, _ := json.Marshal(map[string]string{
		"type":      "webauthn.get",
		"challenge": "some-other-challenge",
		"origin":    testOrigin,
	})
	f.r.AuthorSig.ClientDataJSON = enc.B64URLEncode(cdRaw)
	_, err := Verify(context.Background(), f.input())
	assert.Equal(t, pbierr.ChallengeMismatch, codeOf(t, err))
}

func TestVerify_OriginNotAllowed(t *testing.T) {
	f := buildFixture(t)
	cdRaw, _ := json.Marshal(map[string]string{
		"type":      "webauthn.get",
		"challenge": "challenge-abc",
		"origin":    "https://evil.example",
	})
	f.r.AuthorSig.ClientDataJSON = enc.B64URLEncode(cdRaw)
	_, err := Verify(context.Background(), f.input())
	assert.Equal(t, pbierr.OriginNotAllowed, codeOf(t, err))
}

func TestVerify_RpIDNotAllowed(t *testing.T) {
	f := buildFixture(t)
	f.r.AuthorSig.AuthenticatorData = enc.B64URLEncode(authDataBytes(t, "other-rp.example", 0x05, 1))
	_, err := Verify(context.Background(), f.input())
	assert.Equal(t, pbierr.RpIDNotAllowed, codeOf(t, err))
}

func TestVerify_UserPresenceRequiredButMissing(t *testing.T) {
	f := buildFixture(t)
	f.r.AuthorSig.AuthenticatorData = enc.B64URLEncode(authDataBytes(t, testRPID, 0x04, 1))
	_, err := Verify(context.Background(), f.input())
	assert.Equal(t, pbierr.FlagsPolicyViolation, codeOf(t, err))
}

func TestVerify_UserVerificationRequiredButMissing(t *testing.T) {
	f := buildFixture(t)
	f.r.AuthorSig.AuthenticatorData = enc.B64URLEncode(authDataBytes(t, testRPID, 0x01, 1))
	_, err := Verify(context.Background(), f.input())
	assert.Equal(t, pbierr.FlagsPolicyViolation, codeOf(t, err))
}

func TestVerify_CredentialUnknown(t *testing.T) {
	f := buildFixture(t)
	in := f.input()
	in.Credentials = stubCredentialStore{ok: false}
	_, err := Verify(context.Background(), in)
	assert.Equal(t, pbierr.CredentialUnknown, codeOf(t, err))
}

func TestVerify_SignatureInvalid(t *testing.T) {
	f := buildFixture(t)
	otherPriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	otherKey, err := jwk.FromECDSA(&otherPriv.PublicKey)
	require.NoError(t, err)

	in := f.input()
	in.Credentials = stubCredentialStore{key: otherKey, ok: true}
	_, err = Verify(context.Background(), in)
	assert.Error(t, err)
}

func TestVerify_ChallengeConsumedSucceeds(t *testing.T) {
	f := buildFixture(t)
	in := f.input()
	in.Challenges = stubChallengeStore{state: capability.ChallengeConsumed}
	res, err := Verify(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestVerify_ChallengeUnknown(t *testing.T) {
	f := buildFixture(t)
	in := f.input()
	in.Challenges = stubChallengeStore{state: capability.ChallengeUnknown}
	_, err := Verify(context.Background(), in)
	assert.Equal(t, pbierr.ChallengeUnknown, codeOf(t, err))
}

func TestVerify_ChallengeExpired(t *testing.T) {
	f := buildFixture(t)
	in := f.input()
	in.Challenges = stubChallengeStore{state: capability.ChallengeExpired}
	_, err := Verify(context.Background(), in)
	assert.Equal(t, pbierr.ChallengeExpired, codeOf(t, err))
}

func TestVerify_ChallengeAlreadyUsed(t *testing.T) {
	f := buildFixture(t)
	in := f.input()
	in.Challenges = stubChallengeStore{state: capability.ChallengeIssued}
	_, err := Verify(context.Background(), in)
	assert.Equal(t, pbierr.ChallengeAlreadyUsed, codeOf(t, err))
}

func TestVerify_ChallengeUnhandledStateRejected(t *testing.T) {
	f := buildFixture(t)
	in := f.input()
	in.Challenges = stubChallengeStore{state: capability.ChallengeState(99)}
	_, err := Verify(context.Background(), in)
	assert.Equal(t, pbierr.ChallengeAlreadyUsed, codeOf(t, err))
}
