// Package worker relays outbox entries to the event broker.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "fleetdocs/pkg/platform/audit"
)

const (
	defaultBatchSize = 100
	defaultInterval  = 2 * time.Second
)

// Producer delivers entries to the broker. It must return only after the
// broker acknowledged every entry.
type Producer interface {
	Produce(ctx context.Context, entries []audit.OutboxEntry) error
}

// Worker polls the outbox and publishes pending entries in creation order.
// Delivery is at-least-once: an entry is marked only after Produce succeeds.
type Worker struct {
	outbox    audit.Outbox
	producer  Producer
	logger    *slog.Logger
	batchSize int
	interval  time.Duration
	now       func() time.Time
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

func NewWorker(outbox audit.Outbox, producer Producer, opts ...Option) *Worker {
	w := &Worker{
		outbox:    outbox,
		producer:  producer,
		logger:    slog.Default(),
		batchSize: defaultBatchSize,
		interval:  defaultInterval,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run relays until ctx is cancelled. Relay errors are logged and retried on
// the next tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.RelayOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.WarnContext(ctx, "outbox relay failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RelayOnce drains the outbox batch by batch and returns how many entries
// were published.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	total := 0
	for {
		entries, err := w.outbox.Pending(ctx, w.batchSize)
		if err != nil {
			return total, fmt.Errorf("load pending outbox: %w", err)
		}
		if len(entries) == 0 {
			return total, nil
		}
		if err := w.producer.Produce(ctx, entries); err != nil {
			return total, fmt.Errorf("produce outbox batch: %w", err)
		}
		ids := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		if err := w.outbox.MarkPublished(ctx, ids, w.now()); err != nil {
			return total, fmt.Errorf("mark outbox batch: %w", err)
		}
		total += len(entries)
		if len(entries) < w.batchSize {
			return total, nil
		}
	}
}
