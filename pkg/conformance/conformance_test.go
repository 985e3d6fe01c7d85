package conformance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_ProducesBaselinePlusMutations(t *testing.T) {
	vf, err := Generate(42)
	require.NoError(t, err)
	assert.Equal(t, VectorVersion, vf.Ver)
	assert.Len(t, vf.Cases, 8)
	assert.Equal(t, "valid_01", vf.Cases[0].Name)
	assert.Equal(t, "ok", vf.Cases[0].Expect.Result)
	for _, c := range vf.Cases[1:] {
		assert.Equal(t, "error", c.Expect.Result)
		assert.NotEmpty(t, c.Expect.Code)
	}
}

func TestGenerate_DeterministicForSameSeed(t *testing.T) {
	a, err := Generate(7)
	require.NoError(t, err)
	b, err := Generate(7)
	require.NoError(t, err)
	require.Equal(t, len(a.Cases), len(b.Cases))
	for i := range a.Cases {
		assert.Equal(t, string(a.Cases[i].Receipt), string(b.Cases[i].Receipt))
	}
}

func TestRun_BuiltinVerifier_AllCasesMatchExpectation(t *testing.T) {
	vf, err := Generate(1)
	require.NoError(t, err)

	report := Run(context.Background(), vf, BuiltinVerifier{})
	assert.Equal(t, len(vf.Cases), report.Total)
	assert.True(t, report.AllPassed(), "unexpected mismatches: %+v", report.Cases)
}
