// Package reminder dispatches expiry reminders. Each document is reminded at
// most once per expiry date; renewing a document changes its expiry and with
// it the dedupe key.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

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
	defaultBatchSize   = 100
	defaultConcurrency = 4
)

// Type aliases for shared interfaces.
type (
	DocumentStore     = ports.DocumentStore
	StateStore        = ports.ReminderStore
	Notifier          = ports.Notifier
	RecipientResolver = ports.RecipientResolver
	TxRunner          = ports.TxRunner
	AuditPublisher    = ports.AuditPublisher
)

// Skip reasons reported in metrics and logs.
const (
	skipNoRecipients    = "no_recipients"
	skipUnavailable     = "notifier_unavailable"
	skipPartialDelivery = "partial_delivery"
)

// Report summarises one dispatch run.
type Report struct {
	Scanned int `json:"scanned"`
	Due     int `json:"due"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type Dispatcher struct {
	documents       DocumentStore
	states          StateStore
	notifier        Notifier
	recipients      RecipientResolver
	tx              TxRunner
	auditPublisher  AuditPublisher
	metrics         *metrics.Metrics
	logger          *slog.Logger
	location        *time.Location
	batchSize       int
	concurrency     int
	remindOnExpired bool
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(d *Dispatcher) {
		d.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithLocation(loc *time.Location) Option {
	return func(d *Dispatcher) {
		if loc != nil {
			d.location = loc
		}
	}
}

func WithBatchSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// WithConcurrency bounds how many documents of a batch are notified at once.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithRemindOnExpired controls the one-off reminder for lapsed documents.
func WithRemindOnExpired(enabled bool) Option {
	return func(d *Dispatcher) {
		d.remindOnExpired = enabled
	}
}

func New(documents DocumentStore, states StateStore, notifier Notifier, recipients RecipientResolver, tx TxRunner, opts ...Option) (*Dispatcher, error) {
	switch {
	case documents == nil:
		return nil, fmt.Errorf("document store is required")
	case states == nil:
		return nil, fmt.Errorf("reminder store is required")
	case notifier == nil:
		return nil, fmt.Errorf("notifier is required")
	case recipients == nil:
		return nil, fmt.Errorf("recipient resolver is required")
	case tx == nil:
		return nil, fmt.Errorf("tx runner is required")
	}

	d := &Dispatcher{
		documents:       documents,
		states:          states,
		notifier:        notifier,
		recipients:      recipients,
		tx:              tx,
		logger:          slog.Default(),
		location:        time.UTC,
		batchSize:       defaultBatchSize,
		concurrency:     defaultConcurrency,
		remindOnExpired: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ShouldRemind reports whether doc is due a reminder today and of which kind.
// Documents in the renewal workflow are never reminded. A document that lapses
// after its warning went out gets nothing more for that expiry date; one first
// seen already lapsed gets a single EXPIRED reminder.
func (d *Dispatcher) ShouldRemind(doc *models.Document, state *models.ReminderState, today time.Time) (bool, models.ReminderKind) {
	if state.Covers(doc.ExpiryDate) {
		return false, ""
	}
	var kind models.ReminderKind
	switch classifier.ForDocument(today, doc) {
	case models.StatusExpiringSoon:
		kind = models.ReminderExpiringSoon
	case models.StatusExpired:
		if !d.remindOnExpired {
			return false, ""
		}
		kind = models.ReminderExpired
	default:
		return false, ""
	}
	return true, kind
}

// RecordSent stores the dedupe key for doc. Call it only after the provider
// accepted the reminder.
func (d *Dispatcher) RecordSent(ctx context.Context, doc *models.Document, sentAt time.Time, kind models.ReminderKind) error {
	expiry := dates.Day(doc.ExpiryDate)
	at := sentAt
	return d.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := d.states.Upsert(ctx, &models.ReminderState{
			DocumentID:        doc.ID,
			LastSentAt:        &at,
			LastForExpiryDate: &expiry,
			LastKind:          kind,
		}); err != nil {
			return fmt.Errorf("record reminder: %w", err)
		}
		if d.auditPublisher == nil {
			return nil
		}
		return d.auditPublisher.Emit(ctx, audit.Event{
			Action:        audit.EventReminderSent,
			AggregateType: audit.AggregateDocument,
			AggregateID:   doc.ID.String(),
			Attributes: map[string]string{
				"kind":        string(kind),
				"expiry_date": expiry.Format(time.DateOnly),
			},
		})
	})
}

// Run walks every live document in ID order and sends due reminders. A
// failure on one document is logged and counted; it never stops the run.
// Once the notifier reports itself unavailable, the remaining due reminders
// are skipped and picked up by the next run.
func (d *Dispatcher) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)
	today := dates.Today(now, d.location)

	run := &runState{}
	var after id.DocumentID
	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		batch, err := d.documents.ListAfter(ctx, after, d.batchSize)
		if err != nil {
			runErr = fmt.Errorf("list documents after %s: %w", after, err)
			break
		}
		if len(batch) == 0 {
			break
		}
		if err := d.dispatchBatch(ctx, batch, today, now, run); err != nil {
			runErr = err
			break
		}
		after = batch[len(batch)-1].ID
		if len(batch) < d.batchSize {
			break
		}
	}

	report := run.report()
	d.metrics.ObserveReminderRun(start, runErr)
	d.logger.InfoContext(ctx, "reminder run finished",
		"run_id", requestcontext.RunID(ctx),
		"scanned", report.Scanned,
		"due", report.Due,
		"sent", report.Sent,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", time.Since(start),
	)
	return report, runErr
}

func (d *Dispatcher) dispatchBatch(ctx context.Context, batch []*models.Document, today, now time.Time, run *runState) error {
	ids := make([]id.DocumentID, len(batch))
	for i, doc := range batch {
		ids[i] = doc.ID
	}
	states, err := d.states.GetMany(ctx, ids)
	if err != nil {
		return fmt.Errorf("load reminder states: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, doc := range batch {
		run.add(func(r *Report) { r.Scanned++ })
		due, kind := d.ShouldRemind(doc, states[doc.ID], today)
		if !due {
			continue
		}
		run.add(func(r *Report) { r.Due++ })
		g.Go(func() error {
			d.remind(gctx, doc, kind, today, now, run)
			return nil
		})
	}
	return g.Wait()
}

func (d *Dispatcher) remind(ctx context.Context, doc *models.Document, kind models.ReminderKind, today, now time.Time, run *runState) {
	log := d.logger.With("document_id", doc.ID, "kind", kind)

	if run.unavailable.Load() {
		d.skip(run, skipUnavailable)
		return
	}
	recipients, err := d.recipients.Recipients(ctx, doc)
	if err != nil {
		log.WarnContext(ctx, "failed to resolve reminder recipients", "error", err)
		run.add(func(r *Report) { r.Failed++ })
		return
	}
	if len(recipients) == 0 {
		log.WarnContext(ctx, "no reminder recipients configured")
		d.skip(run, skipNoRecipients)
		return
	}

	delivered, undelivered := 0, []string(nil)
	unavailable := false
	for _, recipient := range recipients {
		if run.unavailable.Load() {
			unavailable = true
			undelivered = append(undelivered, recipient)
			continue
		}
		err := d.notifier.Send(ctx, models.Reminder{
			Recipient:      recipient,
			DocumentID:     doc.ID,
			DocumentNumber: doc.DocumentNumber,
			Title:          doc.Title,
			EntityType:     doc.EntityType,
			EntityName:     doc.EntityName,
			ExpiryDate:     doc.ExpiryDate,
			DaysRemaining:  classifier.DaysRemaining(today, doc.ExpiryDate),
			Kind:           kind,
		})
		switch {
		case errors.Is(err, sentinel.ErrUnavailable):
			if run.unavailable.CompareAndSwap(false, true) {
				log.WarnContext(ctx, "notifier unavailable; deferring remaining reminders to the next run", "error", err)
			}
			unavailable = true
			undelivered = append(undelivered, recipient)
		case err != nil:
			log.WarnContext(ctx, "failed to send reminder", "recipient", recipient, "error", err)
			undelivered = append(undelivered, recipient)
		default:
			delivered++
		}
	}

	// Once any recipient accepted the reminder the expiry date counts as
	// reminded; retrying would resend to the ones that already have it.
	if delivered == 0 {
		if unavailable {
			d.skip(run, skipUnavailable)
			return
		}
		run.add(func(r *Report) { r.Failed++ })
		return
	}
	if len(undelivered) > 0 {
		log.ErrorContext(ctx, "reminder not delivered to every recipient; it will not be retried",
			"delivered", delivered,
			"undelivered", undelivered,
		)
		d.metrics.IncReminderSkip(skipPartialDelivery)
	}

	if err := d.RecordSent(ctx, doc, now, kind); err != nil {
		log.ErrorContext(ctx, "reminder sent but not recorded; it may be sent again", "error", err)
		run.add(func(r *Report) { r.Failed++ })
		return
	}
	d.metrics.IncReminderSent(string(kind))
	run.add(func(r *Report) { r.Sent++ })
}

func (d *Dispatcher) skip(run *runState, reason string) {
	d.metrics.IncReminderSkip(reason)
	run.add(func(r *Report) { r.Skipped++ })
}

type runState struct {
	mu          sync.Mutex
	counts      Report
	unavailable atomic.Bool
}

func (r *runState) add(fn func(*Report)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.counts)
}

func (r *runState) report() Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts
}
