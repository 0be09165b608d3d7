// Package totp implements RFC 6238 time-based one-time passwords: secret
// generation, otpauth:// provisioning URIs, code computation and verification
// with a symmetric drift window.
//
// # Architecture boundaries
//
// The package is a stateless function set. It does not persist secrets,
// track used counters, or throttle attempts; those decisions belong to the
// Engine and the user store.
//
// QR rasterization is delegated to github.com/pquerna/otp through
// [QRRenderer] so the core never depends on image encoding details.
package totp
