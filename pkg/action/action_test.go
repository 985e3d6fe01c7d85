package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAction() *Action {
	return &Action{
		Ver:     Version,
		Aud:     "api.example.com",
		Purpose: "transfer_funds",
		Method:  "POST",
		Path:    "/v1/transfers",
		Query:   "",
		Params:  map[string]interface{}{"amount": 100},
	}
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validAction().Validate())
}

func TestValidate_MissingFields(t *testing.T) {
	a := validAction()
	a.Method = ""
	assert.Error(t, a.Validate())
}

func TestValidate_NilParams(t *testing.T) {
	a := validAction()
	a.Params = nil
	assert.Error(t, a.Validate())
}

func TestValidate_VersionMismatch(t *testing.T) {
	a := validAction()
	a.Ver = "pbi-action-0.9"
	err := a.Validate()
	require.Error(t, err)
}

func TestHash_DeterministicAndSensitiveToParams(t *testing.T) {
	a := validAction()
	h1, err := Hash(a)
	require.NoError(t, err)
	h2, err := Hash(a)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	a.Params["amount"] = 200
	h3, err := Hash(a)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestHash_IgnoresKeyOrderingInParams(t *testing.T) {
	a1 := validAction()
	a1.Params = map[string]interface{}{"a": 1, "b": 2}
	a2 := validAction()
	a2.Params = map[string]interface{}{"b": 2, "a": 1}

	h1, err := Hash(a1)
	require.NoError(t, err)
	h2, err := Hash(a2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
