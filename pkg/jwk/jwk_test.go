package jwk

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromECDSA_RoundTrip(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	k, err := FromECDSA(&priv.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, "EC", k["kty"])
	assert.Equal(t, "P-256", k["crv"])

	pub, err := k.ECDSAPublicKey()
	require.NoError(t, err)
	assert.True(t, pub.Equal(&priv.PublicKey))
}

func TestFromECDSA_RejectsNonP256(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	_, err = FromECDSA(&priv.PublicKey)
	assert.Error(t, err)
}

func TestFromEd25519_RoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	k, err := FromEd25519(pub)
	require.NoError(t, err)
	assert.Equal(t, "OKP", k["kty"])
	assert.Equal(t, "Ed25519", k["crv"])

	recovered, err := k.Ed25519PublicKey()
	require.NoError(t, err)
	assert.True(t, recovered.Equal(pub))
}

func TestECDSAPublicKey_RejectsWrongKty(t *testing.T) {
	k := JWK{"kty": "OKP", "crv": "Ed25519"}
	_, err := k.ECDSAPublicKey()
	assert.Error(t, err)
}

func TestEd25519PublicKey_RejectsWrongCrv(t *testing.T) {
	k := JWK{"kty": "OKP", "crv": "X25519"}
	_, err := k.Ed25519PublicKey()
	assert.Error(t, err)
}

func TestKeyID_DeterministicAndDistinct(t *testing.T) {
	priv1, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	priv2, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	k1, err := FromECDSA(&priv1.PublicKey)
	require.NoError(t, err)
	k2, err := FromECDSA(&priv2.PublicKey)
	require.NoError(t, err)

	id1a, err := k1.KeyID()
	require.NoError(t, err)
	id1b, err := k1.KeyID()
	require.NoError(t, err)
	id2, err := k2.KeyID()
	require.NoError(t, err)

	assert.Equal(t, id1a, id1b)
	assert.NotEqual(t, id1a, id2)
	assert.Len(t, id1a, 64)
}
