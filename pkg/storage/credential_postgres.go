package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/kojibai/pbi-core/pkg/jwk"
)

// PostgresCredentialStore resolves credential public keys from a shared
// PostgreSQL database, the multi-node deployment's CredentialStore backend.
type PostgresCredentialStore struct {
	db *sql.DB
}

func NewPostgresCredentialStore(db *sql.DB) *PostgresCredentialStore {
	return &PostgresCredentialStore{db: db}
}

func (s *PostgresCredentialStore) Lookup(ctx context.Context, credID string) (jwk.JWK, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT pub_key_jwk FROM credentials WHERE cred_id = $1", credID)
	var raw string
	err := row.Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: postgres credential lookup: %w", err)
	}
	var key jwk.JWK
	if err := json.Unmarshal([]byte(raw), &key); err != nil {
		return nil, false, fmt.Errorf("storage: postgres credential decode: %w", err)
	}
	return key, true, nil
}

// Register upserts a credential's public key.
func (s *PostgresCredentialStore) Register(ctx context.Context, credID string, key jwk.JWK) error {
	raw, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("storage: postgres credential encode: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (cred_id, pub_key_jwk)
		VALUES ($1, $2)
		ON CONFLICT (cred_id) DO UPDATE SET pub_key_jwk = EXCLUDED.pub_key_jwk
	`, credID, string(raw))
	if err != nil {
		return fmt.Errorf("storage: postgres credential register: %w", err)
	}
	return nil
}
