// Package config loads the typed configuration a host process uses to
// assemble capability backends (CredentialStore, ChallengeStore) and ambient
// concerns (logging). The verification core's pure functions never read the
// environment directly; only this layer does, and only a thin CLI/daemon
// wrapper consults it.
package config

import "os"

// Config holds a host process's environment-derived settings.
type Config struct {
	LogLevel string

	// TrustFile is the default --trust document consulted when a CLI
	// invocation doesn't pass one explicitly.
	TrustFile string

	// CredentialStoreDSN selects and configures the CredentialStore
	// backend: "postgres://...", "sqlite:///path/to.db", or "file://./pubkeys".
	CredentialStoreDSN string

	// ChallengeStoreDSN selects the ChallengeStore backend, e.g.
	// "redis://localhost:6379/0". Empty means offline mode (no
	// ChallengeStore is constructed).
	ChallengeStoreDSN string
}

// Load reads configuration from environment variables, applying the
// defaults a local developer run needs with no further setup.
func Load() *Config {
	logLevel := os.Getenv("PBI_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	trustFile := os.Getenv("PBI_TRUST_FILE")

	credDSN := os.Getenv("PBI_CREDENTIAL_STORE_DSN")
	if credDSN == "" {
		credDSN = "file://./pubkeys"
	}

	challengeDSN := os.Getenv("PBI_CHALLENGE_STORE_DSN")

	return &Config{
		LogLevel:           logLevel,
		TrustFile:          trustFile,
		CredentialStoreDSN: credDSN,
		ChallengeStoreDSN:  challengeDSN,
	}
}
