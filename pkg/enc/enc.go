// Package enc implements the hash and encoding primitives shared by every
// verification layer: SHA-256 hex digests, unpadded base64url, strict hex,
// and fixed-width big-endian integers.
package enc

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"regexp"

	"github.com/kojibai/pbi-core/pkg/canon"
	"github.com/kojibai/pbi-core/pkg/pbierr"
)

// Sha256 returns the raw 32-byte SHA-256 digest of data.
func Sha256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// Sha256Hex returns the lowercase-hex SHA-256 digest of data.
func Sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CanonicalHash returns the lowercase-hex SHA-256 digest of the canonical
// encoding of v.
func CanonicalHash(v interface{}) (string, error) {
	b, err := canon.Canonicalize(v)
	if err != nil {
		return "", err
	}
	return Sha256Hex(b), nil
}

// Canonicalize re-exports canon.Canonicalize so callers that already depend
// on enc for hashing don't need a second import for the raw bytes.
func Canonicalize(v interface{}) ([]byte, error) {
	return canon.Canonicalize(v)
}

// B64URLEncode encodes data as unpadded base64url.
func B64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// B64URLDecode decodes unpadded-or-padded base64url, strict about alphabet.
func B64URLDecode(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	// liberal about trailing padding
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, pbierr.Newf(pbierr.InvalidStructure, "invalid base64url: %v", err)
	}
	return b, nil
}

var hexPattern = regexp.MustCompile(`^[0-9a-f]+$`)

// HexToBytes decodes strict lowercase hex; an odd length or any character
// outside [0-9a-f] is rejected (uppercase is never accepted, matching the
// lowercase hex this package produces on output).
func HexToBytes(s string) ([]byte, error) {
	if len(s)%2 != 0 || !hexPattern.MatchString(s) {
		return nil, pbierr.Newf(pbierr.InvalidStructure, "invalid hex string: %q", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, pbierr.Newf(pbierr.InvalidStructure, "invalid hex string: %v", err)
	}
	return b, nil
}

var hex64Pattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// RequireHex64 fails unless s is exactly 64 lowercase hex characters.
func RequireHex64(label, s string) error {
	if !hex64Pattern.MatchString(s) {
		return pbierr.Newf(pbierr.InvalidStructure, "%s must be 64 lowercase hex characters", label)
	}
	return nil
}

// PutU32BE writes v as a fixed-width 4-byte big-endian integer.
func PutU32BE(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// U32BE reads a fixed-width 4-byte big-endian integer.
func U32BE(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, pbierr.New(pbierr.InvalidStructure, "expected 4 bytes for u32")
	}
	return binary.BigEndian.Uint32(b), nil
}
