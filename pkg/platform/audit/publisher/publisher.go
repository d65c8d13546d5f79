// Package publisher emits lifecycle events with fail-closed semantics.
//
// Emit writes synchronously through the configured store. When the store is
// outbox-backed and the context carries a transaction, the event commits or
// rolls back together with the state change, so callers must fail their
// operation when Emit fails.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "fleetdocs/pkg/platform/audit"
	"fleetdocs/pkg/requestcontext"
)

var (
	errMissingAction    = errors.New("audit event requires Action")
	errMissingAggregate = errors.New("audit event requires AggregateID")
)

type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit fills ID, timestamp, actor and run ID from ctx when unset and persists
// the event.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	start := time.Now()

	if event.Action == "" {
		return errMissingAction
	}
	if event.AggregateID == "" {
		return errMissingAggregate
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.ActorID == "" {
		event.ActorID = requestcontext.ActorID(ctx)
	}
	if event.RunID == "" {
		event.RunID = requestcontext.RunID(ctx)
	}

	if err := p.store.Append(ctx, event); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "audit event persistence failed",
				"action", event.Action,
				"aggregate_id", event.AggregateID,
				"error", err,
			)
		}
		return err
	}

	if p.metrics != nil {
		p.metrics.ObservePersist(start)
		p.metrics.IncEmitted(event.Category())
	}
	return nil
}

// Close is a no-op; Emit never buffers.
func (p *Publisher) Close() error {
	return nil
}
