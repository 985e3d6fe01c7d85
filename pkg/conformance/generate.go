package conformance

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	cryptorand "crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/kojibai/pbi-core/pkg/action"
	"github.com/kojibai/pbi-core/pkg/enc"
	"github.com/kojibai/pbi-core/pkg/jwk"
	"github.com/kojibai/pbi-core/pkg/pbierr"
	"github.com/kojibai/pbi-core/pkg/receipt"
	"github.com/kojibai/pbi-core/pkg/webauthn"
)

// deterministicStream turns a seed into a reproducible byte stream via
// HKDF-SHA256, so the generated vector corpus is byte-for-byte
// reproducible given the same seed without relying on a non-cryptographic
// PRNG as key-generation entropy.
func deterministicStream(seed int64) io.Reader {
	ikm := make([]byte, 8)
	binary.BigEndian.PutUint64(ikm, uint64(seed))
	return hkdf.New(sha256.New, ikm, nil, []byte("pbi-conformance-vectors"))
}

// Generate seeds one valid baseline case and, by minimal single-field
// mutation, one case per failure code named in the error vocabulary's
// semantic layer. The result is deterministic for a given seed.
func Generate(seed int64) (*VectorFile, error) {
	rng := deterministicStream(seed)

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rng)
	if err != nil {
		return nil, fmt.Errorf("conformance: generate key: %w", err)
	}
	pubJWK, err := jwk.FromECDSA(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("conformance: jwk from ecdsa key: %w", err)
	}

	const rpID = "example.com"
	const origin = "https://example.com"

	a := &action.Action{
		Ver:     action.Version,
		Aud:     "example-aud",
		Purpose: "conformance-test",
		Method:  "POST",
		Path:    "/widgets",
		Params:  map[string]interface{}{"id": "w-1"},
	}
	actionHash, err := action.Hash(a)
	if err != nil {
		return nil, err
	}

	challengeBytes := make([]byte, 32)
	if _, err := rng.Read(challengeBytes); err != nil {
		return nil, fmt.Errorf("conformance: derive challenge bytes: %w", err)
	}
	challenge := enc.B64URLEncode(challengeBytes)

	var cases []Case
	valid, err := buildCase("valid_01", "a correctly formed receipt verifies", rpID, origin, a, actionHash, challenge, priv, pubJWK, mutation{})
	if err != nil {
		return nil, err
	}
	cases = append(cases, *valid)

	mutations := []struct {
		name string
		desc string
		code pbierr.Code
		m    mutation
	}{
		{"invalid_origin_01", "clientDataJSON.origin is not in the allow list", pbierr.OriginNotAllowed, mutation{origin: "https://evil.example"}},
		{"webauthn_type_mismatch_01", "clientDataJSON.type is not webauthn.get", pbierr.WebauthnTypeMismatch, mutation{clientType: "webauthn.create"}},
		{"challenge_mismatch_01", "clientDataJSON.challenge does not match receipt.challenge", pbierr.ChallengeMismatch, mutation{mismatchChallenge: true}},
		{"rpId_not_allowed_01", "authenticatorData rpIdHash matches no allow-listed rpId", pbierr.RpIDNotAllowed, mutation{rpIDHash: "not-example.com"}},
		{"flags_policy_violation_uv_01", "UV flag required but not set", pbierr.FlagsPolicyViolation, mutation{clearUV: true}},
		{"action_hash_mismatch_01", "receipt.actionHash does not match the recomputed action hash", pbierr.ActionHashMismatch, mutation{actionHash: "00000000000000000000000000000000000000000000000000000000000000aa"}},
		{"invalid_signature_01", "the assertion signature does not verify", pbierr.SignatureInvalid, mutation{corruptSignature: true}},
	}

	for _, mc := range mutations {
		c, err := buildCase(mc.name, mc.desc, rpID, origin, a, actionHash, challenge, priv, pubJWK, mc.m)
		if err != nil {
			return nil, err
		}
		c.Expect = Expect{Result: "error", Code: string(mc.code)}
		cases = append(cases, *c)
	}

	return &VectorFile{
		Ver:       VectorVersion,
		Spec:      receipt.Version,
		CreatedAt: "1970-01-01T00:00:00Z",
		Cases:     cases,
	}, nil
}

// mutation describes a minimal single-field deviation from the valid
// baseline case.
type mutation struct {
	origin            string
	clientType        string
	mismatchChallenge bool
	rpIDHash          string
	clearUV           bool
	actionHash        string
	corruptSignature  bool
}

func buildCase(name, desc, rpID, origin string, a *action.Action, actionHash, challenge string, priv *ecdsa.PrivateKey, pubJWK jwk.JWK, m mutation) (*Case, error) {
	effectiveOrigin := origin
	if m.origin != "" {
		effectiveOrigin = m.origin
	}
	clientType := webauthn.TypeGet
	if m.clientType != "" {
		clientType = m.clientType
	}

	cd := webauthn.ClientData{Type: clientType, Challenge: challenge, Origin: effectiveOrigin}
	cdBytes, err := json.Marshal(cd)
	if err != nil {
		return nil, err
	}

	rpIDForHash := rpID
	if m.rpIDHash != "" {
		rpIDForHash = m.rpIDHash
	}
	rpIDHash := sha256.Sum256([]byte(rpIDForHash))

	flags := byte(0x01) // UP
	if !m.clearUV {
		flags |= 0x04 // UV
	}

	authData := make([]byte, 0, 37)
	authData = append(authData, rpIDHash[:]...)
	authData = append(authData, flags)
	authData = append(authData, enc.PutU32BE(1)...)

	signedActionHash := actionHash
	if m.actionHash != "" {
		signedActionHash = m.actionHash
	}

	cdHash := sha256.Sum256(cdBytes)
	signedData := append(append([]byte{}, authData...), cdHash[:]...)
	digest := sha256.Sum256(signedData)
	sig, err := ecdsa.SignASN1(cryptorand.Reader, priv, digest[:])
	if err != nil {
		return nil, fmt.Errorf("conformance: sign case %q: %w", name, err)
	}
	if m.corruptSignature {
		sig[len(sig)-1] ^= 0xff
	}

	credID := "cred-1"
	challengeID := "chal-1"
	if m.mismatchChallenge {
		challenge = enc.B64URLEncode([]byte("a-different-challenge-value-xxxx"))
	}

	r := &receipt.Receipt{
		Ver:         receipt.Version,
		ChallengeID: challengeID,
		Challenge:   challenge,
		ActionHash:  signedActionHash,
		Aud:         a.Aud,
		Purpose:     a.Purpose,
		AuthorSig: receipt.AuthorSig{
			Alg:               receipt.AlgWebauthnES256,
			CredID:            credID,
			AuthenticatorData: enc.B64URLEncode(authData),
			ClientDataJSON:    enc.B64URLEncode(cdBytes),
			Signature:         enc.B64URLEncode(sig),
		},
	}
	receiptBytes, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	actionBytes, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}

	return &Case{
		Name:      name,
		Desc:      desc,
		RpID:      rpID,
		Origin:    origin,
		Action:    actionBytes,
		Receipt:   receiptBytes,
		PubKeyJwk: pubJWK,
		Expect:    Expect{Result: "ok"},
	}, nil
}
