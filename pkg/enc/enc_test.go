package enc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSha256Hex(t *testing.T) {
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", Sha256Hex([]byte("hello")))
}

func TestCanonicalHash_Deterministic(t *testing.T) {
	v := map[string]interface{}{"b": 1, "a": 2}
	h1, err := CanonicalHash(v)
	require.NoError(t, err)
	h2, err := CanonicalHash(v)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestB64URL_RoundTrip(t *testing.T) {
	data := []byte{0x00, 0x01, 0xff, 0xfe, 'h', 'i'}
	encoded := B64URLEncode(data)
	decoded, err := B64URLDecode(encoded)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestB64URLDecode_RejectsInvalid(t *testing.T) {
	_, err := B64URLDecode("not base64!!")
	assert.Error(t, err)
}

func TestHexToBytes_RejectsUppercaseAndOddLength(t *testing.T) {
	_, err := HexToBytes("ABCD")
	assert.Error(t, err)

	_, err = HexToBytes("abc")
	assert.Error(t, err)

	b, err := HexToBytes("abcd")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xab, 0xcd}, b)
}

func TestRequireHex64(t *testing.T) {
	valid := ""
	for i := 0; i < 64; i++ {
		valid += "a"
	}
	assert.NoError(t, RequireHex64("field", valid))
	assert.Error(t, RequireHex64("field", "short"))
}

func TestU32BE_RoundTrip(t *testing.T) {
	b := PutU32BE(123456789)
	v, err := U32BE(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(123456789), v)
}

func TestU32BE_RejectsWrongLength(t *testing.T) {
	_, err := U32BE([]byte{1, 2, 3})
	assert.Error(t, err)
}
