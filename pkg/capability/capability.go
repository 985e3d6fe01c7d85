// Package capability declares the narrow capability interfaces the core
// expects from its host: CredentialStore, ChallengeStore, Clock, and
// ByteSource. The core never constructs these itself, and never assumes
// which backend (filesystem, object store, SQL, Redis, in-memory) services
// them — every operation takes one in as a parameter.
package capability

import (
	"context"
	"time"

	"github.com/kojibai/pbi-core/pkg/jwk"
)

// CredentialStore resolves a WebAuthn credential identifier to its
// registered EC P-256 public key.
type CredentialStore interface {
	// Lookup returns the credential's public key, or ok=false if unknown.
	Lookup(ctx context.Context, credID string) (key jwk.JWK, ok bool, err error)
}

// ChallengeState is the lifecycle state of a server-minted challenge.
type ChallengeState int

const (
	ChallengeUnknown ChallengeState = iota
	ChallengeIssued
	ChallengeConsumed
	ChallengeExpired
)

// ChallengeStore marks a server-issued challenge one-shot consumed. It is
// only consulted in online mode; the offline core never constructs one.
//
// MarkConsumed is the linearization point for single-use enforcement: a
// database- or Redis-backed implementation must make the check-and-mark
// atomic (e.g. an atomic GETDEL), never a separate read then write.
type ChallengeStore interface {
	MarkConsumed(ctx context.Context, challengeID string) (ChallengeState, error)
}

// Clock supplies a monotonic wall-clock reading, used only by the Trust
// Policy Engine's validity-window checks; the Receipt Verifier proper is
// clock-free.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock is a deterministic Clock for tests and "as-of" audits.
type FixedClock struct{ At time.Time }

func (c FixedClock) Now() time.Time { return c.At }

// ByteSource reads manifest, receipt, action, pubkey, and proof documents
// from addressable storage: a local filesystem, an object store, or an
// embedded fixture set.
type ByteSource interface {
	// ReadFile returns the raw bytes at path, relative to the source's root.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// ListFiles returns the paths under dir, relative to the source's root,
	// in no particular order — callers that need canonical ordering (e.g.
	// the Pack Engine's lexicographic receipt enumeration) sort themselves.
	ListFiles(ctx context.Context, dir string) ([]string, error)
}
