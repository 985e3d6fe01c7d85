package trust

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kojibai/pbi-core/pkg/jwk"
)

func issuerEntry(t *testing.T) KeyEntry {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	key, err := jwk.FromECDSA(&priv.PublicKey)
	require.NoError(t, err)
	keyID, err := key.KeyID()
	require.NoError(t, err)
	return KeyEntry{KeyID: keyID, PubKeyJwk: key}
}

func TestLoadRoots_JSON(t *testing.T) {
	entry := issuerEntry(t)
	roots := &Roots{Ver: RootsVersion, TrustedIssuers: []KeyEntry{entry}}
	raw, err := json.Marshal(roots)
	require.NoError(t, err)

	loaded, err := LoadRoots(raw, "roots.json")
	require.NoError(t, err)
	assert.Len(t, loaded.TrustedIssuers, 1)
	assert.Equal(t, entry.KeyID, loaded.TrustedIssuers[0].KeyID)
}

func TestLoadRoots_YAML(t *testing.T) {
	entry := issuerEntry(t)
	raw := []byte("ver: " + RootsVersion + "\ntrustedIssuers:\n  - keyId: \"" + entry.KeyID + "\"\n    pubKeyJwk: {}\n")
	_, err := LoadRoots(raw, "roots.yaml")
	assert.Error(t, err, "pubKeyJwk stub should not recompute to the declared keyId")
}

func TestLoadRoots_RejectsWrongVersion(t *testing.T) {
	raw := []byte(`{"ver":"pbi-trust-0.9"}`)
	_, err := LoadRoots(raw, "roots.json")
	assert.Error(t, err)
}

func TestLoadRoots_RejectsMismatchedKeyID(t *testing.T) {
	entry := issuerEntry(t)
	entry.KeyID = "deadbeef"
	roots := &Roots{Ver: RootsVersion, TrustedIssuers: []KeyEntry{entry}}
	raw, err := json.Marshal(roots)
	require.NoError(t, err)

	_, err = LoadRoots(raw, "roots.json")
	assert.Error(t, err)
}

func TestMergeRoots_CombinesAllFields(t *testing.T) {
	e1 := issuerEntry(t)
	e2 := issuerEntry(t)
	a := &Roots{Ver: RootsVersion, TrustedIssuers: []KeyEntry{e1}, RevokedKeyIDs: []string{"x"}, Constraint: `issuer.aud == "a"`}
	b := &Roots{Ver: RootsVersion, TrustedIssuers: []KeyEntry{e2}, RevokedKeyIDs: []string{"y"}}

	merged := MergeRoots(a, b)
	assert.Len(t, merged.TrustedIssuers, 2)
	assert.ElementsMatch(t, []string{"x", "y"}, merged.RevokedKeyIDs)
	assert.Equal(t, `issuer.aud == "a"`, merged.Constraint)
}

func TestMergeRoots_SkipsNil(t *testing.T) {
	e1 := issuerEntry(t)
	a := &Roots{Ver: RootsVersion, TrustedIssuers: []KeyEntry{e1}}
	merged := MergeRoots(a, nil)
	assert.Len(t, merged.TrustedIssuers, 1)
}
