// Package webauthn parses and verifies the WebAuthn-shaped fields embedded
// in a receipt's authorSig record: clientDataJSON and authenticatorData,
// and the ES256 assertion signature over them.
//
// Grounded in the assertion-verification half of a WebAuthn relying-party
// library; registration/attestation is out of scope here since receipts
// only ever carry assertions ("webauthn.get").
package webauthn

import (
	"encoding/json"

	"github.com/kojibai/pbi-core/pkg/pbierr"
)

// ClientData is the decoded form of clientDataJSON.
type ClientData struct {
	Type        string `json:"type"`
	Challenge   string `json:"challenge"`
	Origin      string `json:"origin"`
	TopOrigin   string `json:"topOrigin,omitempty"`
	CrossOrigin bool   `json:"crossOrigin,omitempty"`
}

const TypeGet = "webauthn.get"

// ParseClientData decodes raw UTF-8 JSON bytes (already base64url-decoded by
// the caller) into a ClientData record.
func ParseClientData(raw []byte) (*ClientData, error) {
	var cd ClientData
	if err := json.Unmarshal(raw, &cd); err != nil {
		return nil, pbierr.Newf(pbierr.InvalidStructure, "invalid clientDataJSON: %v", err)
	}
	if cd.Type == "" || cd.Challenge == "" || cd.Origin == "" {
		return nil, pbierr.New(pbierr.InvalidStructure, "clientDataJSON missing required fields")
	}
	return &cd, nil
}
