package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport and server errors from Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrNotFound is returned for unknown, expired or deleted sessions.
var ErrNotFound = errors.New("session not found")

const minSlidingTTL = time.Second

const (
	promoteStatusNotFound    int64 = 0
	promoteStatusPromoted    int64 = 1
	promoteStatusInvalidBlob int64 = 2
)

// KEYS[1] session key
// ARGV[1] target level
//
// The level byte sits at Lua index 2 (levelOffset+1). A lower target leaves
// the blob untouched so concurrent promotions cannot demote.
const promoteScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end

local version = string.byte(data, 1)
local current = string.byte(data, 2)
if version ~= 1 or not current then
  return {2}
end

local target = tonumber(ARGV[1])
if target <= current then
  return {1, data}
end

local ttl = redis.call("PTTL", KEYS[1])
if ttl <= 0 then
  return {0}
end

local updated = string.sub(data, 1, 1) .. string.char(target) .. string.sub(data, 3)
redis.call("SET", KEYS[1], updated, "PX", ttl)
return {1, updated}
`

var promoteLua = redis.NewScript(promoteScript)

// Config controls key naming and expiry.
type Config struct {
	Prefix string

	// IdleTimeout is the sliding window renewed on every Get.
	IdleTimeout time.Duration
	// AbsoluteLifetime caps a session regardless of activity.
	AbsoluteLifetime time.Duration

	// Jitter spreads renewals by up to ±Jitter. Zero disables it.
	Jitter time.Duration

	Now func() time.Time
}

// Store is a Redis-backed session store with sliding idle expiry, an
// absolute lifetime cap and atomic level promotion.
type Store struct {
	redis  redis.UniversalClient
	config Config
}

// NewStore creates a [Store] backed by rdb.
func NewStore(rdb redis.UniversalClient, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = "mfa:sess"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{redis: rdb, config: cfg}
}

func (s *Store) key(sessionID string) string {
	return s.config.Prefix + ":" + sessionID
}

// Save writes sess under its ID. ExpiresAt is stamped from CreatedAt and the
// absolute lifetime when unset.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		return errors.New("session id required")
	}

	now := s.config.Now()
	if sess.CreatedAt == 0 {
		sess.CreatedAt = now.Unix()
	}
	if sess.ExpiresAt == 0 && s.config.AbsoluteLifetime > 0 {
		sess.ExpiresAt = time.Unix(sess.CreatedAt, 0).Add(s.config.AbsoluteLifetime).Unix()
	}

	data, err := Encode(sess)
	if err != nil {
		return err
	}

	ttl := s.initialTTL(sess, now)
	if ttl <= 0 {
		return errors.New("session expiry is not in the future")
	}

	if err := s.redis.Set(ctx, s.key(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get loads a session and renews its idle TTL. Sessions past their
// absolute expiry are deleted and reported as [ErrNotFound].
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	key := s.key(sessionID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.ID = sessionID

	now := s.config.Now()
	remaining := s.remainingAbsoluteTTL(sess, now)
	if remaining <= 0 {
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil, ErrNotFound
	}

	if s.config.IdleTimeout > 0 {
		nextTTL, err := s.nextSlidingTTL(remaining)
		if err != nil {
			return nil, err
		}
		if err := s.redis.Expire(ctx, key, nextTTL).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return sess, nil
}

// Delete removes a session. Deleting a missing session is not an error;
// the boolean reports whether anything was removed.
func (s *Store) Delete(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Promote raises the session to level if it is currently lower and
// returns the stored session. The key TTL is preserved.
func (s *Store) Promote(ctx context.Context, sessionID string, level Level) (*Session, error) {
	if !level.Valid() || level == LevelNone {
		return nil, errors.New("invalid promotion level")
	}

	result, err := promoteLua.Run(ctx, s.redis, []string{s.key(sessionID)}, int(level)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid promote script response", ErrRedisUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid promote script status", ErrRedisUnavailable)
	}

	switch code {
	case promoteStatusNotFound:
		return nil, ErrNotFound
	case promoteStatusInvalidBlob:
		return nil, ErrCorrupt
	case promoteStatusPromoted:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing promoted session payload", ErrRedisUnavailable)
		}
		var blob []byte
		switch v := parts[1].(type) {
		case string:
			blob = []byte(v)
		case []byte:
			blob = v
		default:
			return nil, fmt.Errorf("%w: invalid promoted session payload", ErrRedisUnavailable)
		}
		sess, err := Decode(blob)
		if err != nil {
			return nil, err
		}
		sess.ID = sessionID
		return sess, nil
	default:
		return nil, fmt.Errorf("%w: unknown promote script status", ErrRedisUnavailable)
	}
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) initialTTL(sess *Session, now time.Time) time.Duration {
	ttl := s.remainingAbsoluteTTL(sess, now)
	if s.config.IdleTimeout > 0 && s.config.IdleTimeout < ttl {
		ttl = s.config.IdleTimeout
	}
	return ttl
}

func (s *Store) remainingAbsoluteTTL(sess *Session, now time.Time) time.Duration {
	if sess.ExpiresAt == 0 {
		if s.config.IdleTimeout > 0 {
			return s.config.IdleTimeout
		}
		return 0
	}
	return time.Unix(sess.ExpiresAt, 0).Sub(now)
}

func (s *Store) nextSlidingTTL(remainingAbsolute time.Duration) (time.Duration, error) {
	nextTTL := s.config.IdleTimeout

	if s.config.Jitter > 0 {
		jitter, err := randomJitter(s.config.Jitter)
		if err != nil {
			return 0, err
		}
		nextTTL += jitter
	}

	if nextTTL > remainingAbsolute {
		nextTTL = remainingAbsolute
	}

	minTTL := minSlidingTTL
	if remainingAbsolute < minTTL {
		minTTL = remainingAbsolute
	}
	if nextTTL < minTTL {
		nextTTL = minTTL
	}

	return nextTTL, nil
}

func randomJitter(jitterRange time.Duration) (time.Duration, error) {
	if jitterRange <= 0 {
		return 0, nil
	}

	max := jitterRange.Nanoseconds()
	if max > (math.MaxInt64-1)/2 {
		return 0, errors.New("jitter range too large")
	}
	span := max*2 + 1

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return 0, err
	}

	return time.Duration(n.Int64() - max), nil
}
