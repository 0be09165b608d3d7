package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

const encodedSessionIDLen = 22

// SessionID is 128 bits of crypto/rand output.
type SessionID [16]byte

// NewSessionID returns a fresh random session identifier.
func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// ParseSessionID decodes the String form. Anything that is not exactly
// 16 bytes of base64url is rejected.
func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID
	if len(sessionID) != encodedSessionIDLen {
		return sid, errors.New("invalid session id size")
	}

	raw, err := base64.RawURLEncoding.Strict().DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}
