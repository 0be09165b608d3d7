package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	goMFA "github.com/MrEthical07/goMFA"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const pgUniqueViolation = "23505"

// Postgres stores users in PostgreSQL.
type Postgres struct {
	db DBTX
}

func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres connects through the pgx stdlib driver, applies migrations
// and returns the store together with the pool for the caller to close.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, *sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := Migrate(ctx, db, goose.DialectPostgres); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return NewPostgres(db), db, nil
}

func (r *Postgres) GetUser(ctx context.Context, username string) (*goMFA.UserRecord, error) {
	query :=
		`SELECT username, password_hash, mfa_active, totp_secret, created_at FROM users
		 WHERE username = $1`

	rec := &goMFA.UserRecord{}
	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&rec.Username, &rec.PasswordHash, &rec.MFAActive, &rec.TOTPSecret, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goMFA.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func (r *Postgres) CreateUser(ctx context.Context, rec goMFA.UserRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	query :=
		`INSERT INTO users (id, username, password_hash, mfa_active, totp_secret, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		uuid.NewString(), rec.Username, rec.PasswordHash, rec.MFAActive, rec.TOTPSecret, rec.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return goMFA.ErrDuplicateUsername
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *Postgres) SetTOTP(ctx context.Context, username, secret string, active bool) error {
	return updateTOTP(ctx, r.db,
		`UPDATE users SET totp_secret = $1, mfa_active = $2 WHERE username = $3`,
		username, secret, active)
}
