package storage

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresCredentialStore_Lookup_Found(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresCredentialStore(db)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"pub_key_jwk"}).
		AddRow(`{"kty":"EC","crv":"P-256","x":"abc","y":"def"}`)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT pub_key_jwk FROM credentials WHERE cred_id = $1")).
		WithArgs("cred-1").
		WillReturnRows(rows)

	key, ok, err := store.Lookup(ctx, "cred-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "EC", key["kty"])
	assert.Equal(t, "P-256", key["crv"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCredentialStore_Lookup_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresCredentialStore(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT pub_key_jwk FROM credentials WHERE cred_id = $1")).
		WithArgs("unknown").
		WillReturnRows(sqlmock.NewRows([]string{"pub_key_jwk"}))

	key, ok, err := store.Lookup(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, key)
}

func TestPostgresCredentialStore_Register(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresCredentialStore(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO credentials")).
		WithArgs("cred-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = store.Register(ctx, "cred-1", map[string]interface{}{"kty": "EC"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
