package goMFA

import "errors"

var (
	// ErrInvalidRegistration is returned for an empty username or a password outside policy.
	ErrInvalidRegistration = errors.New("invalid registration")
	// ErrDuplicateUsername is returned when the username is already registered.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrInvalidCredentials is returned for an unknown user or a wrong password.
	// The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by a UserStore when no record matches.
	// The Engine never surfaces it to callers of Login.
	ErrUserNotFound = errors.New("user not found")
	// ErrUnauthenticated is returned when an operation needs a session and none is present.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorizedMFAStep is returned when the session has not reached the level the
	// operation requires.
	ErrUnauthorizedMFAStep = errors.New("mfa step required")
	// ErrInvalidTOTP is returned for a wrong, expired or malformed code.
	ErrInvalidTOTP = errors.New("invalid totp code")
	// ErrTOTPNotConfigured is returned when verifying a code for a user without MFA.
	ErrTOTPNotConfigured = errors.New("totp not configured")
	// ErrTokenExpired is returned for a bearer token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalidSignature is returned when a bearer token fails signature verification.
	ErrTokenInvalidSignature = errors.New("token signature invalid")
	// ErrTokenMalformed is returned for tokens that cannot be decoded or carry bad claims.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrStoreFailure wraps persistence, session backend and crypto failures.
	ErrStoreFailure = errors.New("store failure")
	// ErrEngineNotReady is returned when an Engine method is called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
