package pbierr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyError_ErrorString(t *testing.T) {
	withDetail := New(CredentialUnknown, "cred-1 not registered")
	assert.Equal(t, "credential_unknown: cred-1 not registered", withDetail.Error())

	withoutDetail := New(SignatureInvalid, "")
	assert.Equal(t, "signature_invalid", withoutDetail.Error())
}

func TestNewf_FormatsDetail(t *testing.T) {
	err := Newf(RpIDNotAllowed, "rpId %q is not on the allow list", "example.com")
	assert.Equal(t, RpIDNotAllowed, err.Code)
	assert.Equal(t, `rpId "example.com" is not on the allow list`, err.Detail)
}

func TestCodeOf(t *testing.T) {
	ve := New(ChallengeExpired, "past deadline")
	code, ok := CodeOf(ve)
	assert.True(t, ok)
	assert.Equal(t, ChallengeExpired, code)

	code, ok = CodeOf(errors.New("plain plumbing error"))
	assert.False(t, ok)
	assert.Equal(t, Code(""), code)
}
