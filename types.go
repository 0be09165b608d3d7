package goMFA

import (
	"context"
	"time"

	"github.com/MrEthical07/goMFA/session"
)

// UserRecord is a persisted account. TOTPSecret is non-empty exactly when
// MFAActive is true.
type UserRecord struct {
	Username     string
	PasswordHash string
	MFAActive    bool
	TOTPSecret   string
	CreatedAt    time.Time
}

// UserStore persists user records. Implementations own their concurrency
// control and must make SetTOTP atomic: readers never observe the secret
// and the flag out of step.
type UserStore interface {
	// GetUser returns ErrUserNotFound when no record exists.
	GetUser(ctx context.Context, username string) (*UserRecord, error)
	// CreateUser returns ErrDuplicateUsername when the username is taken.
	CreateUser(ctx context.Context, rec UserRecord) error
	// SetTOTP replaces the secret and flag together. It returns
	// ErrUserNotFound when no record exists.
	SetTOTP(ctx context.Context, username, secret string, active bool) error
}

// QRRenderer turns a provisioning URI into an image.
type QRRenderer interface {
	Render(uri string) ([]byte, error)
}

// LoginResult is returned by a successful password check.
type LoginResult struct {
	SessionID string
	Username  string
	MFAActive bool

	// Token is set only when LoginConfig.IssueTokenWithoutMFA is enabled and
	// the account has no second factor.
	Token *IssuedToken
}

// AuthStatus describes the caller's current session.
type AuthStatus struct {
	Username  string
	MFAActive bool
	Level     session.Level
}

// Provisioning is returned once from BeginProvisioning and never stored
// apart from the secret on the user record.
type Provisioning struct {
	Secret  string
	URI     string
	QRImage []byte
}

// IssuedToken is a signed bearer token.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenClaims is the verified content of a bearer token.
type TokenClaims struct {
	Subject   string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
