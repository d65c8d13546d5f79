package notify

import (
	"context"
	"fmt"
	"log/slog"

	"fleetdocs/internal/document/models"
	"fleetdocs/internal/document/ports"
	"fleetdocs/pkg/platform/circuit"
	"fleetdocs/pkg/platform/sentinel"
)

// Guarded wraps a notifier in a circuit breaker. While the breaker is open,
// Send fails fast with an error wrapping sentinel.ErrUnavailable so callers
// can defer the reminder instead of counting it as failed.
type Guarded struct {
	next    ports.Notifier
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuarded(next ports.Notifier, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{next: next, breaker: breaker, logger: logger}
}

func (g *Guarded) Send(ctx context.Context, reminder models.Reminder) error {
	if !g.breaker.Allow() {
		return fmt.Errorf("notifier %s: %w", g.breaker.Name(), sentinel.ErrUnavailable)
	}

	if err := g.next.Send(ctx, reminder); err != nil {
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "notification circuit opened", "breaker", g.breaker.Name(), "error", err)
		}
		return err
	}

	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "notification circuit closed", "breaker", g.breaker.Name())
	}
	return nil
}
