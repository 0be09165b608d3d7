// Package httpapi exposes an Engine over JSON/HTTP.
//
// Routes:
//
//	POST /auth/register        {"username","password"}          201 | 400 | 409
//	POST /auth/login           {"username","password"}          200 + session cookie | 401
//	GET  /auth/status          session cookie                   200 | 401
//	POST /auth/logout          session cookie                   200 | 401
//	POST /auth/2fa/setup       session cookie                   200 {"secret","uri","qrImage"}
//	POST /auth/2fa/verify      session cookie, {"code"}         200 {"token","expiresAt"} | 400
//	POST /auth/2fa/reset       session cookie                   200
//	GET  /auth/session/secure  session cookie, TOTP passed      200 | 401 | 403
//	GET  /auth/me              Authorization: Bearer <token>    200 | 401
//	GET  /healthz                                               200 | 503
//	GET  /metrics              Prometheus text, when configured
//
// Handler error bodies are {"error": "..."} with a fixed message per status.
// Requests the session middleware refuses get a plain-text body.
// Backend failures are logged and returned as a bare 500.
package httpapi
