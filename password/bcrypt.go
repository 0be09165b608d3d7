package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinBcryptCost is the lowest accepted work factor.
const MinBcryptCost = 10

// Bcrypt hashes passwords with bcrypt. The salt is embedded in the output.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a hasher using cost, which must be between
// MinBcryptCost and bcrypt.MaxCost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost < MinBcryptCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", MinBcryptCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

// Algorithm reports the configured algorithm name.
func (b *Bcrypt) Algorithm() string {
	return AlgorithmBcrypt
}

// Hash returns the modular-crypt encoded bcrypt hash of password.
func (b *Bcrypt) Hash(password string) (string, error) {
	if len(password) > MaxBcryptPasswordBytes {
		return "", ErrPasswordTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify compares password against encodedHash. A mismatch is reported as
// (false, nil); malformed hashes return an error.
func (b *Bcrypt) Verify(password string, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	case errors.Is(err, bcrypt.ErrHashTooShort):
		return false, ErrInvalidHash
	default:
		return false, err
	}
}
