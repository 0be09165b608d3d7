// Package config loads mfa-server settings. Sources are applied in order:
// built-in defaults, an optional TOML file, GOMFA_* environment variables,
// then command-line flags. Later sources win.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	goMFA "github.com/MrEthical07/goMFA"
	"github.com/MrEthical07/goMFA/internal/logging"
)

const envPrefix = "GOMFA_"

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Redis   RedisConfig   `toml:"redis"`
	Store   StoreConfig   `toml:"store"`
	Log     LogConfig     `toml:"log"`
	Auth    AuthConfig    `toml:"auth"`
	Metrics MetricsConfig `toml:"metrics"`
}

type ServerConfig struct {
	Addr            string        `toml:"addr"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	CookieName      string        `toml:"cookie_name"`
	CookieSecure    bool          `toml:"cookie_secure"`
	// TrustProxy makes the first X-Forwarded-For entry the client IP.
	TrustProxy bool `toml:"trust_proxy"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	// Embedded starts an in-process miniredis instead of dialing Addr.
	Embedded bool `toml:"embedded"`
}

type StoreConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type AuthConfig struct {
	SigningKey           string        `toml:"signing_key"`
	TokenTTL             time.Duration `toml:"token_ttl"`
	Issuer               string        `toml:"issuer"`
	TOTPIssuer           string        `toml:"totp_issuer"`
	IdleTimeout          time.Duration `toml:"idle_timeout"`
	AbsoluteLifetime     time.Duration `toml:"absolute_lifetime"`
	PasswordAlgorithm    string        `toml:"password_algorithm"`
	BcryptCost           int           `toml:"bcrypt_cost"`
	IssueTokenWithoutMFA bool          `toml:"issue_token_without_mfa"`
	Audit                bool          `toml:"audit"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
	Latency bool `toml:"latency"`
}

// Default returns settings suitable for local development. SigningKey is
// empty; the server generates an ephemeral key when none is configured.
func Default() *Config {
	engine := goMFA.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CookieName:      "mfa_session",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Store: StoreConfig{
			Driver: StoreMemory,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Auth: AuthConfig{
			TokenTTL:          engine.Token.TTL,
			Issuer:            engine.Token.Issuer,
			TOTPIssuer:        engine.TOTP.Issuer,
			IdleTimeout:       engine.Session.IdleTimeout,
			AbsoluteLifetime:  engine.Session.AbsoluteLifetime,
			PasswordAlgorithm: engine.Password.Algorithm,
			BcryptCost:        engine.Password.BcryptCost,
			Audit:             true,
		},
		Metrics: MetricsConfig{
			Enabled: engine.Metrics.Enabled,
			Latency: true,
		},
	}
}

// Load builds a Config from args (without the program name) and getenv.
// The file path comes from -config or GOMFA_CONFIG.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	path := configPathFromArgs(args)
	if path == "" {
		path = getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		if err := cfg.LoadTOML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.ParseFlags(args, io.Discard); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML overlays the keys present in path onto c.
func (c *Config) LoadTOML(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnv overlays GOMFA_* variables onto c. Empty variables are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []error
	str := func(name string, dst *string) {
		if v := getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v := getenv(envPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	integer := func(name string, dst *int) {
		if v := getenv(envPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v := getenv(envPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("ADDR", &c.Server.Addr)
	str("COOKIE_NAME", &c.Server.CookieName)
	boolean("COOKIE_SECURE", &c.Server.CookieSecure)
	boolean("TRUST_PROXY", &c.Server.TrustProxy)

	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	integer("REDIS_DB", &c.Redis.DB)
	boolean("REDIS_EMBEDDED", &c.Redis.Embedded)

	str("STORE_DRIVER", &c.Store.Driver)
	str("STORE_DSN", &c.Store.DSN)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	str("SIGNING_KEY", &c.Auth.SigningKey)
	duration("TOKEN_TTL", &c.Auth.TokenTTL)
	str("ISSUER", &c.Auth.Issuer)
	str("TOTP_ISSUER", &c.Auth.TOTPIssuer)
	duration("IDLE_TIMEOUT", &c.Auth.IdleTimeout)
	duration("ABSOLUTE_LIFETIME", &c.Auth.AbsoluteLifetime)
	str("PASSWORD_ALGORITHM", &c.Auth.PasswordAlgorithm)
	integer("BCRYPT_COST", &c.Auth.BcryptCost)
	boolean("ISSUE_TOKEN_WITHOUT_MFA", &c.Auth.IssueTokenWithoutMFA)
	boolean("AUDIT", &c.Auth.Audit)

	boolean("METRICS", &c.Metrics.Enabled)
	boolean("METRICS_LATENCY", &c.Metrics.Latency)

	return errors.Join(errs...)
}

// ParseFlags overlays command-line flags onto c. Flags not given keep the
// current value. Usage output goes to out.
func (c *Config) ParseFlags(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("mfa-server", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.String("config", "", "path to a TOML config file")
	fs.StringVar(&c.Server.Addr, "addr", c.Server.Addr, "HTTP listen address")
	fs.BoolVar(&c.Server.CookieSecure, "cookie-secure", c.Server.CookieSecure, "mark the session cookie Secure")
	fs.BoolVar(&c.Server.TrustProxy, "trust-proxy", c.Server.TrustProxy, "take the client IP from X-Forwarded-For")
	fs.StringVar(&c.Redis.Addr, "redis-addr", c.Redis.Addr, "Redis address")
	fs.BoolVar(&c.Redis.Embedded, "redis-embedded", c.Redis.Embedded, "run an in-process Redis")
	fs.StringVar(&c.Store.Driver, "store", c.Store.Driver, "user store: memory, sqlite or postgres")
	fs.StringVar(&c.Store.DSN, "dsn", c.Store.DSN, "user store DSN")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "debug, info, warn or error")
	fs.StringVar(&c.Log.Format, "log-format", c.Log.Format, "text or json")
	fs.StringVar(&c.Auth.SigningKey, "signing-key", c.Auth.SigningKey, "HS256 signing key, at least 32 bytes")
	fs.DurationVar(&c.Auth.TokenTTL, "token-ttl", c.Auth.TokenTTL, "access token lifetime")
	fs.BoolVar(&c.Auth.IssueTokenWithoutMFA, "token-without-mfa", c.Auth.IssueTokenWithoutMFA, "issue a token at login for accounts without MFA")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("config: unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return nil
}

// Validate checks server-level settings. Engine settings are checked by
// goMFA.Config.Validate when the engine is built.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("config: server addr must be set")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("config: shutdown timeout must be > 0")
	}
	if c.Server.CookieName == "" || strings.ContainsAny(c.Server.CookieName, " ;,=\t") {
		return errors.New("config: invalid cookie name")
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite, StorePostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store %q requires a dsn", c.Store.Driver)
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if !c.Redis.Embedded && c.Redis.Addr == "" {
		return errors.New("config: redis addr must be set unless redis is embedded")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	if c.Auth.SigningKey != "" && len(c.Auth.SigningKey) < 32 {
		return errors.New("config: signing key must be at least 32 bytes")
	}
	return nil
}

// EngineConfig maps c onto an engine configuration. key is used when
// Auth.SigningKey is empty.
func (c *Config) EngineConfig(key []byte) goMFA.Config {
	out := goMFA.DefaultConfig()
	if c.Auth.SigningKey != "" {
		key = []byte(c.Auth.SigningKey)
	}
	out.Token.PrivateKey = key
	out.Token.TTL = c.Auth.TokenTTL
	out.Token.Issuer = c.Auth.Issuer
	out.TOTP.Issuer = c.Auth.TOTPIssuer
	out.Session.IdleTimeout = c.Auth.IdleTimeout
	out.Session.AbsoluteLifetime = c.Auth.AbsoluteLifetime
	out.Password.Algorithm = c.Auth.PasswordAlgorithm
	out.Password.BcryptCost = c.Auth.BcryptCost
	out.Login.IssueTokenWithoutMFA = c.Auth.IssueTokenWithoutMFA
	out.Audit.Enabled = c.Auth.Audit
	out.Metrics.Enabled = c.Metrics.Enabled
	out.Metrics.EnableLatencyHistograms = c.Metrics.Latency
	return out
}

func configPathFromArgs(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			return ""
		}
		name := strings.TrimLeft(a, "-")
		if len(a)-len(name) == 0 || len(a)-len(name) > 2 {
			continue
		}
		if v, ok := strings.CutPrefix(name, "config="); ok {
			return v
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
