package userstore

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) (*SQLite, *sql.DB) {
	t.Helper()
	store, db, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return store, db
}

func TestSQLiteStoreContract(t *testing.T) {
	store, _ := openTestSQLite(t)
	exerciseStore(t, store)
}

func TestSQLiteMigrateIsIdempotent(t *testing.T) {
	_, db := openTestSQLite(t)

	require.NoError(t, Migrate(context.Background(), db, goose.DialectSQLite3))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Zero(t, n)
}

func TestSQLiteCheckConstraintGuardsPair(t *testing.T) {
	store, db := openTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, store.CreateUser(ctx, aliceRecord()))

	_, err := db.ExecContext(ctx, `UPDATE users SET mfa_active = 1 WHERE username = ?`, "alice")
	require.Error(t, err, "schema must refuse an active flag without a secret")

	_, err = db.ExecContext(ctx, `UPDATE users SET totp_secret = 'ABC' WHERE username = ?`, "alice")
	require.Error(t, err, "schema must refuse a secret without the flag")
}

func TestSQLiteStoresUsersIndependently(t *testing.T) {
	store, _ := openTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, aliceRecord()))
	bob := aliceRecord()
	bob.Username = "bob"
	require.NoError(t, store.CreateUser(ctx, bob))

	require.NoError(t, store.SetTOTP(ctx, "bob", "JBSWY3DPEHPK3PXP", true))

	alice, err := store.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, alice.MFAActive)
}

func TestMigrateRejectsUnknownDialect(t *testing.T) {
	_, db := openTestSQLite(t)
	assert.Error(t, Migrate(context.Background(), db, goose.DialectMySQL))
}
