package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type held struct {
	token     string
	expiresAt time.Time
}

// Memory is the in-process Locker used when Redis is not configured. It only
// excludes callers within one process.
type Memory struct {
	mu     sync.Mutex
	leases map[string]held
	now    func() time.Time
}

type MemoryOption func(*Memory)

func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{leases: make(map[string]held), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	if key == "" {
		return "", false, errEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if h, ok := m.leases[key]; ok && now.Before(h.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	m.leases[key] = held{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (m *Memory) Unlock(_ context.Context, key, token string) error {
	if key == "" {
		return errEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.leases[key]; ok && h.token == token {
		delete(m.leases, key)
	}
	return nil
}
