package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kojibai/pbi-core/pkg/jwk"
)

// SQLiteCredentialStore resolves credential public keys from a local SQLite
// database, the single-node deployment's CredentialStore backend.
type SQLiteCredentialStore struct {
	db *sql.DB
}

func NewSQLiteCredentialStore(db *sql.DB) (*SQLiteCredentialStore, error) {
	s := &SQLiteCredentialStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteCredentialStore) migrate() error {
	const query = `
	CREATE TABLE IF NOT EXISTS credentials (
		cred_id    TEXT PRIMARY KEY,
		pub_key_jwk JSON NOT NULL
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteCredentialStore) Lookup(ctx context.Context, credID string) (jwk.JWK, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT pub_key_jwk FROM credentials WHERE cred_id = ?", credID)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("storage: sqlite credential lookup: %w", err)
	}
	var key jwk.JWK
	if err := json.Unmarshal([]byte(raw), &key); err != nil {
		return nil, false, fmt.Errorf("storage: sqlite credential decode: %w", err)
	}
	return key, true, nil
}

// Register upserts a credential's public key, used by enrollment flows.
func (s *SQLiteCredentialStore) Register(ctx context.Context, credID string, key jwk.JWK) error {
	raw, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("storage: sqlite credential encode: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO credentials (cred_id, pub_key_jwk) VALUES (?, ?)
		 ON CONFLICT(cred_id) DO UPDATE SET pub_key_jwk = excluded.pub_key_jwk`,
		credID, string(raw))
	if err != nil {
		return fmt.Errorf("storage: sqlite credential register: %w", err)
	}
	return nil
}
