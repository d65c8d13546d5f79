// Package sweep keeps the cached document status in line with the classifier.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fleetdocs/internal/document/classifier"
	"fleetdocs/internal/document/metrics"
	"fleetdocs/internal/document/models"
	"fleetdocs/internal/document/ports"
	id "fleetdocs/pkg/domain"
	"fleetdocs/pkg/platform/audit"
	"fleetdocs/pkg/platform/dates"
	"fleetdocs/pkg/platform/sentinel"
	"fleetdocs/pkg/requestcontext"
)

const (
	defaultBatchSize         = 100
	defaultStaleRenewalAfter = 14 * 24 * time.Hour
)

// Sweep results recorded per document.
const (
	resultUnchanged = "unchanged"
	resultUpdated   = "updated"
	resultReverted  = "reverted"
	resultSkipped   = "skipped"
	resultConflict  = "conflict"
	resultFailed    = "failed"
)

// Type aliases for shared interfaces.
type (
	DocumentStore  = ports.DocumentStore
	TxRunner       = ports.TxRunner
	AuditPublisher = ports.AuditPublisher
)

// Report summarises one sweep.
type Report struct {
	Scanned   int
	Updated   int
	Reverted  int
	Skipped   int
	Conflicts int
	Failed    int
}

type Sweeper struct {
	documents         DocumentStore
	tx                TxRunner
	auditPublisher    AuditPublisher
	metrics           *metrics.Metrics
	logger            *slog.Logger
	location          *time.Location
	batchSize         int
	staleRenewalAfter time.Duration
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Sweeper) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

func WithLocation(loc *time.Location) Option {
	return func(s *Sweeper) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithBatchSize(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithStaleRenewalAfter sets how long a renewal marker may stand before the
// sweep reverts it. Zero disables reverting.
func WithStaleRenewalAfter(d time.Duration) Option {
	return func(s *Sweeper) {
		if d >= 0 {
			s.staleRenewalAfter = d
		}
	}
}

func New(documents DocumentStore, tx TxRunner, opts ...Option) (*Sweeper, error) {
	if documents == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	s := &Sweeper{
		documents:         documents,
		tx:                tx,
		logger:            slog.Default(),
		location:          time.UTC,
		batchSize:         defaultBatchSize,
		staleRenewalAfter: defaultStaleRenewalAfter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run walks every live document once in ID order. Each changed row is written
// with a version compare-and-set; a concurrent edit wins and the row is
// picked up by the next sweep. Per-document failures are logged and counted.
// Only a failure to read a batch aborts the run.
func (s *Sweeper) Run(ctx context.Context) (report Report, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveSweep(start, err) }()

	now := requestcontext.Now(ctx)
	today := dates.Today(now, s.location)

	var after id.DocumentID
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		batch, err := s.documents.ListAfter(ctx, after, s.batchSize)
		if err != nil {
			return report, fmt.Errorf("list documents after %s: %w", after, err)
		}
		for _, doc := range batch {
			report.Scanned++
			result := s.sweepOne(ctx, doc, today, now)
			report.tally(result)
			s.metrics.IncSweepDocument(result)
		}
		if len(batch) < s.batchSize {
			break
		}
		after = batch[len(batch)-1].ID
	}

	s.logger.InfoContext(ctx, "status sweep finished",
		"scanned", report.Scanned,
		"updated", report.Updated,
		"reverted", report.Reverted,
		"conflicts", report.Conflicts,
		"failed", report.Failed,
		"run_id", requestcontext.RunID(ctx),
	)
	return report, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, doc *models.Document, today, now time.Time) string {
	next, result := s.target(doc, today, now)
	if result != resultUpdated && result != resultReverted {
		return result
	}

	previous := doc.Status
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		doc.ApplyStatus(next, now)
		if err := s.documents.Update(ctx, doc); err != nil {
			return err
		}
		return s.emit(ctx, doc.ID, previous, next, result == resultReverted)
	})
	switch {
	case err == nil:
		s.metrics.IncTransition(string(previous), string(next))
		return result
	case errors.Is(err, sentinel.ErrStale), errors.Is(err, sentinel.ErrNotFound):
		s.logger.DebugContext(ctx, "document changed during sweep", "document_id", doc.ID)
		return resultConflict
	default:
		s.logger.ErrorContext(ctx, "failed to update document status",
			"document_id", doc.ID,
			"from", previous,
			"to", next,
			"error", err,
		)
		return resultFailed
	}
}

// target decides the status doc should hold today.
func (s *Sweeper) target(doc *models.Document, today, now time.Time) (models.Status, string) {
	if doc.InRenewal() {
		if !s.renewalIsStale(doc, now) {
			return doc.Status, resultSkipped
		}
		return classifier.DateStatus(today, doc), resultReverted
	}
	next := classifier.ForDocument(today, doc)
	if next == doc.Status {
		return next, resultUnchanged
	}
	return next, resultUpdated
}

// renewalIsStale treats a marker with no start time as stale so a row left
// inconsistent by an older writer is repaired.
func (s *Sweeper) renewalIsStale(doc *models.Document, now time.Time) bool {
	if s.staleRenewalAfter == 0 {
		return false
	}
	if doc.RenewalStartedAt == nil {
		return true
	}
	return now.Sub(*doc.RenewalStartedAt) > s.staleRenewalAfter
}

func (s *Sweeper) emit(ctx context.Context, docID id.DocumentID, from, to models.Status, reverted bool) error {
	if s.auditPublisher == nil {
		return nil
	}
	source := "sweep"
	if reverted {
		source = "stale_renewal"
	}
	return s.auditPublisher.Emit(ctx, audit.Event{
		Action:        audit.EventDocumentStatusChanged,
		AggregateType: audit.AggregateDocument,
		AggregateID:   docID.String(),
		Attributes: map[string]string{
			"from":   string(from),
			"to":     string(to),
			"source": source,
		},
	})
}

func (r *Report) tally(result string) {
	switch result {
	case resultUpdated:
		r.Updated++
	case resultReverted:
		r.Reverted++
	case resultSkipped:
		r.Skipped++
	case resultConflict:
		r.Conflicts++
	case resultFailed:
		r.Failed++
	}
}
