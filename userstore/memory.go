package userstore

import (
	"context"
	"sync"

	goMFA "github.com/MrEthical07/goMFA"
)

// Memory keeps users in a map. Records are copied in and out so callers
// never share state with the store.
type Memory struct {
	mu    sync.RWMutex
	users map[string]goMFA.UserRecord
}

func NewMemory() *Memory {
	return &Memory{users: make(map[string]goMFA.UserRecord)}
}

func (m *Memory) GetUser(ctx context.Context, username string) (*goMFA.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	rec, ok := m.users[username]
	m.mu.RUnlock()

	if !ok {
		return nil, goMFA.ErrUserNotFound
	}
	return &rec, nil
}

func (m *Memory) CreateUser(ctx context.Context, rec goMFA.UserRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[rec.Username]; exists {
		return goMFA.ErrDuplicateUsername
	}
	m.users[rec.Username] = rec
	return nil
}

func (m *Memory) SetTOTP(ctx context.Context, username, secret string, active bool) error {
	if err := checkTOTPState(secret, active); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.users[username]
	if !ok {
		return goMFA.ErrUserNotFound
	}
	rec.TOTPSecret = secret
	rec.MFAActive = active
	m.users[username] = rec
	return nil
}

// Len reports the number of stored users.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}
