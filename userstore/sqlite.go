package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	goMFA "github.com/MrEthical07/goMFA"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLite stores users in a SQLite database. created_at is kept as unix
// seconds.
type SQLite struct {
	db DBTX
}

func NewSQLite(db DBTX) *SQLite {
	return &SQLite{db: db}
}

// OpenSQLite opens dsn with the modernc driver and migrates it. The pool
// is limited to one connection: every ":memory:" connection is its own
// database, and SQLite serialises writers anyway.
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, *sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db, goose.DialectSQLite3); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return NewSQLite(db), db, nil
}

func (r *SQLite) GetUser(ctx context.Context, username string) (*goMFA.UserRecord, error) {
	query := `SELECT username, password_hash, mfa_active, totp_secret, created_at FROM users WHERE username = ?`

	rec := &goMFA.UserRecord{}
	var created int64
	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&rec.Username, &rec.PasswordHash, &rec.MFAActive, &rec.TOTPSecret, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goMFA.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	rec.CreatedAt = time.Unix(created, 0).UTC()
	return rec, nil
}

func (r *SQLite) CreateUser(ctx context.Context, rec goMFA.UserRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	query := `INSERT INTO users (id, username, password_hash, mfa_active, totp_secret, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		uuid.NewString(), rec.Username, rec.PasswordHash, rec.MFAActive, rec.TOTPSecret, rec.CreatedAt.Unix())
	if err != nil {
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return goMFA.ErrDuplicateUsername
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLite) SetTOTP(ctx context.Context, username, secret string, active bool) error {
	return updateTOTP(ctx, r.db,
		`UPDATE users SET totp_secret = ?, mfa_active = ? WHERE username = ?`,
		username, secret, active)
}
