package goMFA

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MrEthical07/goMFA/password"
)

// Config is the complete Engine configuration. Start from DefaultConfig and
// override what you need.
type Config struct {
	Token    TokenConfig
	Session  SessionConfig
	TOTP     TOTPConfig
	Password PasswordConfig
	Login    LoginConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls bearer tokens issued after a completed login.
type TokenConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls server-side sessions.
type SessionConfig struct {
	RedisPrefix      string
	IdleTimeout      time.Duration
	AbsoluteLifetime time.Duration
	JitterRange      time.Duration
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig controls code shape, drift tolerance and QR output.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	Skew      int
	QRSize    int
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hash algorithm and the accepted password length.
type PasswordConfig struct {
	Algorithm  string // "bcrypt" (default) or "argon2id"
	BcryptCost int

	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength int
	MaxLength int
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig tunes the password step.
type LoginConfig struct {
	// IssueTokenWithoutMFA issues a token from Login when the account has no
	// second factor.
	IssueTokenWithoutMFA bool
	// MaxUsernameLength bounds usernames accepted by Register.
	MaxUsernameLength int
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// Events limits auditing to the named event types. Empty means all.
	Events []string
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults. Token keys are left empty and
// must be supplied.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			TTL:           time.Hour,
			SigningMethod: "hs256",
			Issuer:        "goMFA",
		},
		Session: SessionConfig{
			RedisPrefix:      "mfa:sess",
			IdleTimeout:      30 * time.Minute,
			AbsoluteLifetime: 24 * time.Hour,
		},
		TOTP: TOTPConfig{
			Issuer:    "goMFA",
			Digits:    6,
			Period:    30,
			Algorithm: "SHA1",
			Skew:      1,
			QRSize:    256,
		},
		Password: PasswordConfig{
			Algorithm:   password.AlgorithmBcrypt,
			BcryptCost:  password.MinBcryptCost,
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   1,
			MaxLength:   password.MaxBcryptPasswordBytes,
		},
		Login: LoginConfig{
			IssueTokenWithoutMFA: false,
			MaxUsernameLength:    255,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	out.Audit.Events = slices.Clone(cfg.Audit.Events)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first inconsistency in c.
func (c *Config) Validate() error {
	// Token
	if c.Token.TTL <= 0 {
		return errors.New("Token TTL must be > 0")
	}
	switch c.Token.SigningMethod {
	case "hs256":
		if len(c.Token.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.Token.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
	default:
		return errors.New("unsupported token signing method")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	// Session
	if c.Session.IdleTimeout <= 0 {
		return errors.New("Session IdleTimeout must be > 0")
	}
	if c.Session.AbsoluteLifetime <= 0 {
		return errors.New("Session AbsoluteLifetime must be > 0")
	}
	if c.Session.IdleTimeout > c.Session.AbsoluteLifetime {
		return errors.New("Session IdleTimeout must not exceed AbsoluteLifetime")
	}
	if c.Session.JitterRange < 0 || c.Session.JitterRange >= c.Session.IdleTimeout {
		return errors.New("Session JitterRange must be >= 0 and below IdleTimeout")
	}
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must be set")
	}

	// TOTP
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		return errors.New("TOTP Digits must be between 6 and 8")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("TOTP Period must be > 0")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 3 {
		return errors.New("TOTP Skew must be between 0 and 3")
	}
	if c.TOTP.QRSize < 64 || c.TOTP.QRSize > 2048 {
		return errors.New("TOTP QRSize must be between 64 and 2048")
	}

	// Password
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}
	if strings.EqualFold(c.Password.Algorithm, password.AlgorithmBcrypt) || c.Password.Algorithm == "" {
		if c.Password.MaxLength > password.MaxBcryptPasswordBytes {
			return errors.New("Password MaxLength must be <= 72 for bcrypt")
		}
	}

	// Login
	if c.Login.MaxUsernameLength < 1 || c.Login.MaxUsernameLength > 255 {
		return errors.New("Login MaxUsernameLength must be between 1 and 255")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	for _, name := range c.Audit.Events {
		if !slices.Contains(auditEventTypes, name) {
			return fmt.Errorf("Audit Events: unknown event type %q", name)
		}
	}

	return nil
}
