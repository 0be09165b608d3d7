// Package goMFA authenticates users with a password and an optional TOTP
// second factor, and issues a bearer token once authentication completes.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Flow
//
// [Engine.Login] establishes a session at PASSWORD_VERIFIED. Accounts without a
// second factor are done at that point. Accounts with MFA active must pass
// [Engine.VerifyTOTP], which promotes the session to MFA_VERIFIED and returns a
// token. [Engine.BeginProvisioning] and [Engine.ResetMFA] turn the second factor
// on and off.
//
// # Architecture boundaries
//
// goMFA is the public surface. It exposes [Engine], [Builder], [Config], the
// [UserStore] contract and value types. Hashing, codes, tokens and session
// encoding live in the password, totp, jwt and session sub-packages.
//
// # What this package must NOT do
//
//   - Return internal failure reasons to callers; those go to the logger and audit sink.
//   - Log or audit passwords, TOTP secrets, codes or tokens.
//   - Import httpapi, userstore or middleware (no import cycles).
package goMFA
