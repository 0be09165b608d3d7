package totp

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

// SecretBytes is the raw entropy of a generated secret (160 bits).
const SecretBytes = 20

var (
	// ErrInvalidSecret is returned when a secret is empty or not valid base32.
	ErrInvalidSecret = errors.New("invalid totp secret")
	// ErrUnsupportedAlgorithm is returned for HMAC algorithms other than SHA1/SHA256/SHA512.
	ErrUnsupportedAlgorithm = errors.New("unsupported totp algorithm")
)

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Config controls code shape and drift tolerance.
type Config struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	Skew      int
}

// DefaultConfig returns the authenticator-app compatible defaults:
// SHA1, 6 digits, 30 second steps, one step of drift either way.
func DefaultConfig() Config {
	return Config{
		Digits:    6,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      1,
	}
}

// Manager computes and verifies time-step codes. It holds no mutable state
// and is safe for concurrent use.
type Manager struct {
	config Config
}

// New validates cfg and returns a Manager.
func New(cfg Config) (*Manager, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	cfg.Algorithm = strings.ToUpper(cfg.Algorithm)
	if _, err := otpAlgorithm(cfg.Algorithm); err != nil {
		return nil, err
	}
	if cfg.Digits < 6 || cfg.Digits > 8 {
		return nil, errors.New("totp digits must be between 6 and 8")
	}
	if cfg.Period <= 0 {
		return nil, errors.New("totp period must be > 0")
	}
	if cfg.Skew < 0 || cfg.Skew > 3 {
		return nil, errors.New("totp skew must be between 0 and 3")
	}
	return &Manager{config: cfg}, nil
}

// Config returns a copy of the manager's configuration.
func (m *Manager) Config() Config {
	return m.config
}

// GenerateSecret returns a fresh base32 secret backed by SecretBytes of
// crypto/rand output.
func (m *Manager) GenerateSecret() (string, error) {
	raw := make([]byte, SecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return secretEncoding.EncodeToString(raw), nil
}

// ProvisioningURI builds the otpauth:// URI consumed by authenticator apps.
// An empty issuer falls back to the configured one.
func (m *Manager) ProvisioningURI(secret, label, issuer string) string {
	if issuer == "" {
		issuer = m.config.Issuer
	}

	path := label
	if issuer != "" {
		path = issuer + ":" + label
	}

	v := url.Values{}
	v.Set("secret", secret)
	if issuer != "" {
		v.Set("issuer", issuer)
	}
	v.Set("algorithm", m.config.Algorithm)
	v.Set("digits", strconv.Itoa(m.config.Digits))
	v.Set("period", strconv.Itoa(m.config.Period))

	return "otpauth://totp/" + url.PathEscape(path) + "?" + v.Encode()
}

// ComputeCode returns the zero-padded code for the time step containing t.
func (m *Manager) ComputeCode(secret string, t time.Time) (string, error) {
	key, err := DecodeSecret(secret)
	if err != nil {
		return "", err
	}
	return hotpCode(key, m.counter(t), m.config.Digits, m.config.Algorithm)
}

// Verify reports whether code matches the step containing t or any step
// within the configured skew. Malformed codes are rejected before any code
// is derived. The returned error is non-nil only for an unusable secret.
func (m *Manager) Verify(secret, code string, t time.Time) (bool, error) {
	ok, _, err := m.VerifyCounter(secret, code, t)
	return ok, err
}

// WellFormed reports whether code is exactly Digits ASCII digits.
func (m *Manager) WellFormed(code string) bool {
	return len(code) == m.config.Digits && isNumericString(code)
}

// VerifyCounter is Verify that also returns the matched counter.
func (m *Manager) VerifyCounter(secret, code string, t time.Time) (bool, int64, error) {
	if !m.WellFormed(code) {
		return false, 0, nil
	}

	key, err := DecodeSecret(secret)
	if err != nil {
		return false, 0, err
	}

	base := m.counter(t)
	matched := int64(-1)
	for step := -m.config.Skew; step <= m.config.Skew; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := hotpCode(key, counter, m.config.Digits, m.config.Algorithm)
		if err != nil {
			return false, 0, err
		}
		// every candidate is compared so timing does not reveal which step matched
		if subtle.ConstantTimeCompare([]byte(generated), []byte(code)) == 1 && matched < 0 {
			matched = counter
		}
	}
	if matched < 0 {
		return false, 0, nil
	}
	return true, matched, nil
}

func (m *Manager) counter(t time.Time) int64 {
	return t.Unix() / int64(m.config.Period)
}

// DecodeSecret accepts base32 with or without padding, in any case, and
// ignores spaces that apps insert for readability.
func DecodeSecret(secret string) ([]byte, error) {
	cleaned := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	cleaned = strings.TrimRight(cleaned, "=")
	if cleaned == "" {
		return nil, ErrInvalidSecret
	}
	key, err := secretEncoding.DecodeString(cleaned)
	if err != nil || len(key) == 0 {
		return nil, ErrInvalidSecret
	}
	return key, nil
}

// hotpCode derives one code with pquerna's HOTP. key is the decoded secret;
// it is re-encoded canonically so pquerna never sees user formatting.
func hotpCode(key []byte, counter int64, digits int, algorithm string) (string, error) {
	alg, err := otpAlgorithm(algorithm)
	if err != nil {
		return "", err
	}
	if counter < 0 {
		return "", fmt.Errorf("totp counter %d out of range", counter)
	}
	return hotp.GenerateCodeCustom(secretEncoding.EncodeToString(key), uint64(counter), hotp.ValidateOpts{
		Digits:    otp.Digits(digits),
		Algorithm: alg,
	})
}

func otpAlgorithm(name string) (otp.Algorithm, error) {
	switch strings.ToUpper(name) {
	case "", "SHA1":
		return otp.AlgorithmSHA1, nil
	case "SHA256":
		return otp.AlgorithmSHA256, nil
	case "SHA512":
		return otp.AlgorithmSHA512, nil
	default:
		return 0, ErrUnsupportedAlgorithm
	}
}

func isNumericString(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
