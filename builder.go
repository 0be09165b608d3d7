package goMFA

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goMFA/jwt"
	"github.com/MrEthical07/goMFA/password"
	"github.com/MrEthical07/goMFA/session"
	"github.com/MrEthical07/goMFA/totp"
	"github.com/redis/go-redis/v9"
)

// dummyPassword is hashed once at Build so Login can burn the same hashing
// cost for unknown users as for known ones.
const dummyPassword = "goMFA-timing-equalization"

// Builder assembles an Engine. A Builder can be used for one Build only.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users     UserStore
	auditSink AuditSink
	qr        QRRenderer
	logger    *slog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the session backend.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithQRRenderer replaces the default PNG renderer.
func (b *Builder) WithQRRenderer(r QRRenderer) *Builder {
	b.qr = r
	return b
}

// WithLogger sets the structured logger. Without one the Engine logs nothing.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for sessions, codes and tokens.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// -------- CREDENTIALS --------
	hasher, err := password.New(password.Config{
		Algorithm:   cfg.Password.Algorithm,
		BcryptCost:  cfg.Password.BcryptCost,
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}

	// -------- TOTP --------
	totpManager, err := totp.New(totp.Config{
		Issuer:    cfg.TOTP.Issuer,
		Digits:    cfg.TOTP.Digits,
		Period:    cfg.TOTP.Period,
		Algorithm: cfg.TOTP.Algorithm,
		Skew:      cfg.TOTP.Skew,
	})
	if err != nil {
		return nil, err
	}
	qr := b.qr
	if qr == nil {
		qr = totp.QRRenderer{Size: cfg.TOTP.QRSize}
	}

	// -------- TOKENS --------
	tokens, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.Token.TTL,
		SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
		KeyID:         cfg.Token.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	// -------- SESSION STORE --------
	sessions := session.NewStore(b.redis, session.Config{
		Prefix:           cfg.Session.RedisPrefix,
		IdleTimeout:      cfg.Session.IdleTimeout,
		AbsoluteLifetime: cfg.Session.AbsoluteLifetime,
		Jitter:           cfg.Session.JitterRange,
		Now:              now,
	})

	engine := &Engine{
		config:    cfg,
		users:     b.users,
		sessions:  sessions,
		hasher:    hasher,
		dummyHash: dummyHash,
		totp:      totpManager,
		qr:        qr,
		tokens:    tokens,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger,
		clock:     now,
	}

	b.built = true

	return engine, nil
}
