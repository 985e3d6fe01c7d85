package webauthn

import (
	"github.com/kojibai/pbi-core/pkg/enc"
	"github.com/kojibai/pbi-core/pkg/pbierr"
)

// Flags is the single flags byte from authenticatorData.
type Flags byte

// UserPresent reports the UP bit (bit 0).
func (f Flags) UserPresent() bool { return f&0x01 != 0 }

// UserVerified reports the UV bit (bit 2).
func (f Flags) UserVerified() bool { return f&0x04 != 0 }

// BackupEligible reports the BE bit (bit 3).
func (f Flags) BackupEligible() bool { return f&0x08 != 0 }

// BackedUp reports the BS bit (bit 4).
func (f Flags) BackedUp() bool { return f&0x10 != 0 }

// AttestedCredentialData reports the AT bit (bit 6), always false for an
// assertion's authenticatorData.
func (f Flags) AttestedCredentialData() bool { return f&0x40 != 0 }

// Extensions reports the ED bit (bit 7).
func (f Flags) Extensions() bool { return f&0x80 != 0 }

// AuthenticatorData is the parsed assertion-side authenticatorData: a fixed
// 37-byte prefix of rpIdHash || flags || signCount, with no attested
// credential data or extensions block (those only appear at registration).
type AuthenticatorData struct {
	RPIDHash  [32]byte
	Flags     Flags
	SignCount uint32
}

const MinAuthenticatorDataLen = 37

// ParseAuthenticatorData parses the fixed-width assertion prefix. A shorter
// input is a structural failure (37 bytes ok, 36 fails).
func ParseAuthenticatorData(b []byte) (*AuthenticatorData, error) {
	if len(b) < MinAuthenticatorDataLen {
		return nil, pbierr.Newf(pbierr.InvalidStructure,
			"authenticatorData too short: %d bytes, need at least %d", len(b), MinAuthenticatorDataLen)
	}
	var ad AuthenticatorData
	copy(ad.RPIDHash[:], b[0:32])
	ad.Flags = Flags(b[32])
	count, err := enc.U32BE(b[33:37])
	if err != nil {
		return nil, pbierr.New(pbierr.InvalidStructure, "malformed signCount")
	}
	ad.SignCount = count
	return &ad, nil
}
