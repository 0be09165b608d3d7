package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	argon2ID              = "argon2id"
)

// Argon2 hashes passwords with argon2id and encodes them as PHC strings.
type Argon2 struct {
	config Config
}

// argon2Hash is one decoded $argon2id$ PHC string.
type argon2Hash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// NewArgon2 validates the argon2 parameters of cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateArgon2Config(cfg); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Algorithm reports the PHC identifier.
func (a *Argon2) Algorithm() string {
	return AlgorithmArgon2ID
}

// Hash derives a key from password with a fresh random salt.
func (a *Argon2) Hash(password string) (string, error) {
	// raw bytes are used as provided, no Unicode normalization
	h := argon2Hash{
		memory:      a.config.Memory,
		time:        a.config.Time,
		parallelism: a.config.Parallelism,
		salt:        make([]byte, a.config.SaltLength),
	}
	if _, err := io.ReadFull(rand.Reader, h.salt); err != nil {
		return "", err
	}
	h.key = h.derive(password, a.config.KeyLength)
	return h.String(), nil
}

// Verify recomputes the key with the parameters embedded in encodedHash and
// compares in constant time. Hashes made with other parameters still verify.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	h, err := decodeArgon2Hash(encodedHash)
	if err != nil {
		return false, err
	}
	computed := h.derive(password, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(computed, h.key) == 1, nil
}

func (h *argon2Hash) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.parallelism, keyLen)
}

// String renders $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>.
func (h *argon2Hash) String() string {
	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2ID,
		argon2.Version,
		h.memory,
		h.time,
		h.parallelism,
		base64.StdEncoding.EncodeToString(h.salt),
		base64.StdEncoding.EncodeToString(h.key),
	)
}

// decodeArgon2Hash parses a PHC string. Every failure wraps ErrInvalidHash.
func decodeArgon2Hash(encoded string) (*argon2Hash, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return nil, ErrInvalidHash
	}
	if fields[1] != argon2ID {
		return nil, fmt.Errorf("%w: algorithm %q", ErrInvalidHash, fields[1])
	}

	version, ok := strings.CutPrefix(fields[2], "v=")
	if !ok {
		return nil, fmt.Errorf("%w: missing version", ErrInvalidHash)
	}
	if v, err := strconv.Atoi(version); err != nil || v != argon2.Version {
		return nil, fmt.Errorf("%w: version %q", ErrInvalidHash, version)
	}

	h := &argon2Hash{}
	if err := h.decodeParams(fields[3]); err != nil {
		return nil, err
	}

	var err error
	if h.salt, err = base64.StdEncoding.DecodeString(fields[4]); err != nil || len(h.salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: salt", ErrInvalidHash)
	}
	if h.key, err = base64.StdEncoding.DecodeString(fields[5]); err != nil || len(h.key) == 0 {
		return nil, fmt.Errorf("%w: key", ErrInvalidHash)
	}
	return h, nil
}

// decodeParams reads "m=..,t=..,p=.." in any order. Each must appear once.
func (h *argon2Hash) decodeParams(field string) error {
	seen := map[string]bool{}
	for pair := range strings.SplitSeq(field, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || seen[name] {
			return fmt.Errorf("%w: parameter %q", ErrInvalidHash, pair)
		}
		seen[name] = true

		switch name {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || uint32(v) < minMemoryKB {
				return fmt.Errorf("%w: memory %q", ErrInvalidHash, value)
			}
			h.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || uint32(v) < minTimeCost {
				return fmt.Errorf("%w: time %q", ErrInvalidHash, value)
			}
			h.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || uint8(v) < minParallelism {
				return fmt.Errorf("%w: parallelism %q", ErrInvalidHash, value)
			}
			h.parallelism = uint8(v)
		default:
			return fmt.Errorf("%w: parameter %q", ErrInvalidHash, name)
		}
	}
	if len(seen) != 3 {
		return fmt.Errorf("%w: missing parameters", ErrInvalidHash)
	}
	return nil
}

func validateArgon2Config(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}
	return nil
}
