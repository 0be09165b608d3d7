package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// CurrentSchemaVersion is the first byte of every encoded session.
const CurrentSchemaVersion = 1

// levelOffset is the byte index of the level field; the promote script
// rewrites it in place.
const levelOffset = 1

// ErrCorrupt is returned when a stored blob cannot be decoded.
var ErrCorrupt = errors.New("session blob corrupt")

// Encode serializes s as
//
//	version(1) | level(1) | createdAt(8) | expiresAt(8) | usernameLen(1) | username
//
// The session ID is the Redis key and is not part of the blob.
func Encode(s *Session) ([]byte, error) {
	if len(s.Username) == 0 {
		return nil, errors.New("username required")
	}
	if len(s.Username) > 255 {
		return nil, errors.New("username too long")
	}
	if !s.Level.Valid() {
		return nil, errors.New("invalid session level")
	}

	var buf bytes.Buffer
	buf.Grow(19 + len(s.Username))

	buf.WriteByte(CurrentSchemaVersion)
	buf.WriteByte(byte(s.Level))

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	buf.WriteByte(byte(len(s.Username)))
	buf.WriteString(s.Username)

	return buf.Bytes(), nil
}

// Decode parses a blob produced by Encode. The returned Session has no ID.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorrupt
	}
	if version != CurrentSchemaVersion {
		return nil, errors.Join(ErrCorrupt, errors.New("invalid session version"))
	}

	s := &Session{}

	level, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorrupt
	}
	s.Level = Level(level)
	if !s.Level.Valid() {
		return nil, errors.Join(ErrCorrupt, errors.New("invalid session level"))
	}

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, ErrCorrupt
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, ErrCorrupt
	}

	userLen, err := reader.ReadByte()
	if err != nil || userLen == 0 {
		return nil, ErrCorrupt
	}
	username := make([]byte, userLen)
	if _, err := io.ReadFull(reader, username); err != nil {
		return nil, ErrCorrupt
	}
	s.Username = string(username)

	if reader.Len() != 0 {
		return nil, errors.Join(ErrCorrupt, errors.New("trailing bytes"))
	}

	return s, nil
}
