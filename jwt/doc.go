// Package jwt issues and verifies the bearer tokens handed out after a
// completed login. Tokens are stateless: there is no revocation list, so a
// token stays valid until exp even if the account's second factor is reset.
package jwt
