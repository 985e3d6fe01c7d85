package webauthn

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientData_OK(t *testing.T) {
	raw := []byte(`{"type":"webauthn.get","challenge":"abc123","origin":"https://example.com"}`)
	cd, err := ParseClientData(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeGet, cd.Type)
	assert.Equal(t, "abc123", cd.Challenge)
	assert.Equal(t, "https://example.com", cd.Origin)
}

func TestParseClientData_MissingFields(t *testing.T) {
	_, err := ParseClientData([]byte(`{"type":"webauthn.get"}`))
	assert.Error(t, err)
}

func TestParseClientData_InvalidJSON(t *testing.T) {
	_, err := ParseClientData([]byte(`not json`))
	assert.Error(t, err)
}

func TestFlags_Bits(t *testing.T) {
	f := Flags(0x01 | 0x04 | 0x08)
	assert.True(t, f.UserPresent())
	assert.True(t, f.UserVerified())
	assert.True(t, f.BackupEligible())
	assert.False(t, f.BackedUp())
	assert.False(t, f.AttestedCredentialData())
	assert.False(t, f.Extensions())
}

func authDataBytes(flags byte, signCount uint32) []byte {
	b := make([]byte, 37)
	rpHash := sha256.Sum256([]byte("example.com"))
	copy(b[0:32], rpHash[:])
	b[32] = flags
	b[33] = byte(signCount >> 24)
	b[34] = byte(signCount >> 16)
	b[35] = byte(signCount >> 8)
	b[36] = byte(signCount)
	return b
}

func TestParseAuthenticatorData_OK(t *testing.T) {
	raw := authDataBytes(0x05, 42)
	ad, err := ParseAuthenticatorData(raw)
	require.NoError(t, err)
	assert.True(t, ad.Flags.UserPresent())
	assert.True(t, ad.Flags.UserVerified())
	assert.Equal(t, uint32(42), ad.SignCount)
}

func TestParseAuthenticatorData_TooShort(t *testing.T) {
	_, err := ParseAuthenticatorData(make([]byte, 36))
	assert.Error(t, err)
}

func TestVerifyAssertionSignature(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	authData := authDataBytes(0x05, 1)
	clientDataJSON := []byte(`{"type":"webauthn.get","challenge":"abc","origin":"https://example.com"}`)

	cdHash := sha256.Sum256(clientDataJSON)
	signedData := append(append([]byte{}, authData...), cdHash[:]...)
	digest := sha256.Sum256(signedData)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	require.NoError(t, err)

	assert.NoError(t, VerifyAssertionSignature(&priv.PublicKey, authData, clientDataJSON, sig))
	assert.Error(t, VerifyAssertionSignature(&priv.PublicKey, authData, []byte("tampered"), sig))
}
