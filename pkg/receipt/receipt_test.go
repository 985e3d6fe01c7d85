package receipt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.True(t, p.RequireUP)
	assert.True(t, p.RequireUV)
	assert.Empty(t, p.RpIDAllowList)
	assert.Empty(t, p.OriginAllowList)
}

func TestHash_DeterministicAndSensitiveToFields(t *testing.T) {
	f := buildFixture(t)
	h1, err := Hash(f.r)
	require.NoError(t, err)
	h2, err := Hash(f.r)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	f.r.Purpose = "other_purpose"
	h3, err := Hash(f.r)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}
