package tx

import (
	"context"
	"sync"
)

type serialKey struct{}

// Serial is the in-memory Runner: it serialises callbacks under one mutex so
// a multi-store write is never interleaved with another. It cannot roll back;
// callers validate before writing and memory stores do not fail mid-way.
type Serial struct {
	mu sync.Mutex
}

func NewSerial() *Serial {
	return &Serial{}
}

// RunInTx holds the lock for the duration of fn. Nested calls reuse the lock.
func (s *Serial) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(serialKey{}) == s {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(context.WithValue(ctx, serialKey{}, s))
}
