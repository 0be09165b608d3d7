package userstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	goMFA "github.com/MrEthical07/goMFA"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	pgSelectUser = `(?s)^SELECT\s+username,\s*password_hash,\s*mfa_active,\s*totp_secret,\s*created_at\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1$`
	pgInsertUser = `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*username,\s*password_hash,\s*mfa_active,\s*totp_secret,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)$`
	pgUpdateTOTP = `(?s)^UPDATE\s+users\s+SET\s+totp_secret\s*=\s*\$1,\s*mfa_active\s*=\s*\$2\s+WHERE\s+username\s*=\s*\$3$`
)

func newPostgresWithMock(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgres(db), mock
}

func TestPostgresGetUserFound(t *testing.T) {
	store, mock := newPostgresWithMock(t)
	created := time.Unix(1_700_000_000, 0).In(time.FixedZone("CET", 3600))

	rows := sqlmock.NewRows([]string{"username", "password_hash", "mfa_active", "totp_secret", "created_at"}).
		AddRow("alice", "$2a$10$hash", true, "JBSWY3DPEHPK3PXP", created)
	mock.ExpectQuery(pgSelectUser).WithArgs("alice").WillReturnRows(rows)

	got, err := store.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.True(t, got.MFAActive)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", got.TOTPSecret)
	assert.Equal(t, time.UTC, got.CreatedAt.Location())
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestPostgresGetUserNotFound(t *testing.T) {
	store, mock := newPostgresWithMock(t)
	mock.ExpectQuery(pgSelectUser).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := store.GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, goMFA.ErrUserNotFound)
}

func TestPostgresGetUserDBError(t *testing.T) {
	store, mock := newPostgresWithMock(t)
	mock.ExpectQuery(pgSelectUser).WithArgs("alice").WillReturnError(errors.New("db down"))

	_, err := store.GetUser(context.Background(), "alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, goMFA.ErrUserNotFound)
	assert.Contains(t, err.Error(), "db error: db down")
}

func TestPostgresCreateUser(t *testing.T) {
	store, mock := newPostgresWithMock(t)
	rec := aliceRecord()

	mock.ExpectExec(pgInsertUser).
		WithArgs(sqlmock.AnyArg(), "alice", "$2a$10$hash", false, "", rec.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.CreateUser(context.Background(), rec))
}

func TestPostgresCreateUserDuplicate(t *testing.T) {
	store, mock := newPostgresWithMock(t)

	mock.ExpectExec(pgInsertUser).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	err := store.CreateUser(context.Background(), aliceRecord())
	assert.ErrorIs(t, err, goMFA.ErrDuplicateUsername)
}

func TestPostgresCreateUserOtherConstraint(t *testing.T) {
	store, mock := newPostgresWithMock(t)

	mock.ExpectExec(pgInsertUser).
		WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "users_totp_pair"})

	err := store.CreateUser(context.Background(), aliceRecord())
	require.Error(t, err)
	assert.NotErrorIs(t, err, goMFA.ErrDuplicateUsername)
}

func TestPostgresSetTOTP(t *testing.T) {
	store, mock := newPostgresWithMock(t)

	mock.ExpectExec(pgUpdateTOTP).
		WithArgs("JBSWY3DPEHPK3PXP", true, "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(pgUpdateTOTP).
		WithArgs("", false, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.SetTOTP(context.Background(), "alice", "JBSWY3DPEHPK3PXP", true))
	assert.ErrorIs(t, store.SetTOTP(context.Background(), "ghost", "", false), goMFA.ErrUserNotFound)
}

func TestPostgresSetTOTPRejectsInconsistentPairWithoutQuery(t *testing.T) {
	store, _ := newPostgresWithMock(t)

	assert.ErrorIs(t, store.SetTOTP(context.Background(), "alice", "", true), ErrInvalidTOTPState)
}
