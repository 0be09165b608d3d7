// Package internal holds helpers private to goMFA. Today that is the
// session identifier: 128 bits from crypto/rand, carried as unpadded
// base64url.
package internal
