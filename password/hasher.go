package password

import (
	"errors"
	"strings"
)

const (
	// AlgorithmBcrypt selects [Bcrypt].
	AlgorithmBcrypt = "bcrypt"
	// AlgorithmArgon2ID selects [Argon2].
	AlgorithmArgon2ID = "argon2id"

	// MaxBcryptPasswordBytes is the input limit of bcrypt.
	MaxBcryptPasswordBytes = 72
)

var (
	// ErrInvalidHash is returned when a stored hash cannot be parsed.
	ErrInvalidHash = errors.New("invalid password hash")
	// ErrPasswordTooLong is returned when the input exceeds what the algorithm accepts.
	ErrPasswordTooLong = errors.New("password too long")
)

// Hasher is a salted, deliberately slow one-way password function.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	Algorithm() string
}

// Config selects and tunes the hashing algorithm.
type Config struct {
	Algorithm string

	BcryptCost int

	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// New returns the Hasher named by cfg.Algorithm. An empty algorithm means bcrypt.
func New(cfg Config) (Hasher, error) {
	switch strings.ToLower(cfg.Algorithm) {
	case "", AlgorithmBcrypt:
		return NewBcrypt(cfg.BcryptCost)
	case AlgorithmArgon2ID:
		return NewArgon2(cfg)
	default:
		return nil, errors.New("unsupported password algorithm")
	}
}
