package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	goMFA "github.com/MrEthical07/goMFA"
)

// ErrInvalidTOTPState is returned when SetTOTP is asked to store an active
// flag without a secret, or a secret without the flag.
var ErrInvalidTOTPState = errors.New("totp secret and mfa flag out of step")

// DBTX is the subset of database/sql the SQL stores use. Both *sql.DB and
// *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func checkTOTPState(secret string, active bool) error {
	if active == (strings.TrimSpace(secret) == "") {
		return ErrInvalidTOTPState
	}
	return nil
}

func validateRecord(rec goMFA.UserRecord) error {
	if rec.Username == "" || rec.PasswordHash == "" {
		return errors.New("username and password hash required")
	}
	if rec.MFAActive || rec.TOTPSecret != "" {
		return checkTOTPState(rec.TOTPSecret, rec.MFAActive)
	}
	return nil
}

// updateTOTP applies the single-statement pair update shared by the SQL
// stores. query takes (secret, active, username).
func updateTOTP(ctx context.Context, db DBTX, query, username, secret string, active bool) error {
	if err := checkTOTPState(secret, active); err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, query, secret, active, username)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return goMFA.ErrUserNotFound
	}
	return nil
}
