// Package action defines the canonical description of the operation being
// presence-gated, and the actionHash contract that binds a receipt to it.
package action

import (
	"github.com/kojibai/pbi-core/pkg/enc"
	"github.com/kojibai/pbi-core/pkg/pbierr"
)

const Version = "pbi-action-1.0"

// Action is the canonical operation description. Params holds arbitrary
// JSON-shaped values; it is never interpreted by this package, only hashed.
type Action struct {
	Ver     string                 `json:"ver"`
	Aud     string                 `json:"aud"`
	Purpose string                 `json:"purpose"`
	Method  string                 `json:"method"`
	Path    string                 `json:"path"`
	Query   string                 `json:"query"`
	Params  map[string]interface{} `json:"params"`
}

// Validate checks required-field presence and the version discriminator.
func (a *Action) Validate() error {
	if a.Ver == "" || a.Aud == "" || a.Method == "" || a.Path == "" || a.Params == nil {
		return pbierr.New(pbierr.InvalidStructure, "action missing required fields")
	}
	if a.Ver != Version {
		return pbierr.Newf(pbierr.VersionMismatch, "action.ver must be %q, got %q", Version, a.Ver)
	}
	return nil
}

// Hash returns actionHash := SHA-256(canonical(action)) as 64 lowercase hex
// characters. Validate is not called here; callers that need version/field
// checks enforce them separately per the verifier's ordering rules.
func Hash(a *Action) (string, error) {
	h, err := enc.CanonicalHash(a)
	if err != nil {
		return "", err
	}
	return h, nil
}
