// Package middleware adapts goMFA.Engine checks to net/http.
//
// # Guards
//
//   - [Guard] verifies a bearer token and stores its claims in the request
//     context ([ClaimsFromContext]).
//   - [RequireSession] resolves the session cookie and stores the session in
//     the request context ([SessionFromContext]). With requireMFA set it also
//     refuses sessions that still owe a TOTP code.
//
// This package only translates HTTP into Engine calls. It never parses tokens
// or touches Redis itself.
package middleware
