package goMFA

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type mockUserStore struct {
	mu    sync.Mutex
	users map[string]UserRecord

	getErr    error
	createErr error
	setErr    error

	getCalls    int
	createCalls int
	setCalls    int
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: map[string]UserRecord{}}
}

func (m *mockUserStore) GetUser(_ context.Context, username string) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &rec, nil
}

func (m *mockUserStore) CreateUser(_ context.Context, rec UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.users[rec.Username]; ok {
		return ErrDuplicateUsername
	}
	m.users[rec.Username] = rec
	return nil
}

func (m *mockUserStore) SetTOTP(_ context.Context, username, secret string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.setErr != nil {
		return m.setErr
	}
	rec, ok := m.users[username]
	if !ok {
		return ErrUserNotFound
	}
	rec.TOTPSecret = secret
	rec.MFAActive = active
	m.users[username] = rec
	return nil
}

func (m *mockUserStore) record(username string) (UserRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.users[username]
	return rec, ok
}

func (m *mockUserStore) remove(username string) {
	m.mu.Lock()
	delete(m.users, username)
	m.mu.Unlock()
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.PrivateKey = append([]byte(nil), testSigningKey...)
	return cfg
}

type testEngine struct {
	*Engine
	users *mockUserStore
	clock *testClock
	mr    *miniredis.Miniredis
}

func buildTestEngine(t *testing.T, cfg Config, opts ...func(*Builder)) *testEngine {
	t.Helper()

	mr, rdb := newTestRedis(t)
	users := newMockUserStore()
	clock := newTestClock(time.Unix(1_700_000_015, 0))

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithClock(clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{Engine: engine, users: users, clock: clock, mr: mr}
}

// registerAndLogin creates alice and returns her fresh session.
func (te *testEngine) registerAndLogin(t *testing.T) *LoginResult {
	t.Helper()
	ctx := context.Background()
	if err := te.Register(ctx, "alice", "correct horse"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	res, err := te.Login(ctx, "alice", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return res
}
