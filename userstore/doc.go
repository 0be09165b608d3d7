// Package userstore provides goMFA.UserStore implementations.
//
// # Backends
//
//   - Memory: a mutex-guarded map, for tests and single-process demos.
//   - Postgres: database/sql over the pgx stdlib driver.
//   - SQLite: database/sql over modernc.org/sqlite (pure Go, no cgo).
//
// The SQL backends ship their schema as goose migrations embedded in the
// binary; [Migrate] applies them. Both schemas carry a CHECK constraint that
// keeps totp_secret and mfa_active in step, and SetTOTP writes the pair in a
// single UPDATE so no reader can observe a half-applied change.
package userstore
