// Package ports defines the interfaces shared by the document services.
// Interfaces live here when more than one service consumes them.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"
	"time"

	"fleetdocs/internal/document/models"
	id "fleetdocs/pkg/domain"
	"fleetdocs/pkg/platform/audit"
	"fleetdocs/pkg/requestcontext"
)

// AuditPublisher emits lifecycle events. Emit joins the transaction on ctx.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// DocumentStore persists documents. Update is a compare-and-set on Version
// and returns sentinel.ErrStale when another writer won.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error)
	Update(ctx context.Context, doc *models.Document) error

	// ListAfter walks live documents in ID order for batch jobs.
	ListAfter(ctx context.Context, after id.DocumentID, limit int) ([]*models.Document, error)

	// CountByCategory includes soft-deleted documents.
	CountByCategory(ctx context.Context, categoryID id.CategoryID) (int, error)

	Query(ctx context.Context, filter models.Filter, sort models.Sort, page models.Page) ([]*models.Document, int, error)
}

type CategoryStore interface {
	Create(ctx context.Context, c *models.Category) error
	FindByID(ctx context.Context, categoryID id.CategoryID) (*models.Category, error)
	FindByName(ctx context.Context, name string) (*models.Category, error)
	List(ctx context.Context) ([]*models.Category, error)
	Update(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, categoryID id.CategoryID) error
}

type RenewalStore interface {
	Append(ctx context.Context, record *models.RenewalRecord) error
	ListByDocument(ctx context.Context, docID id.DocumentID) ([]models.RenewalRecord, error)
}

// ReminderStore returns nil state without error for documents never reminded.
type ReminderStore interface {
	Get(ctx context.Context, docID id.DocumentID) (*models.ReminderState, error)
	GetMany(ctx context.Context, docIDs []id.DocumentID) (map[id.DocumentID]*models.ReminderState, error)
	Upsert(ctx context.Context, state *models.ReminderState) error
}

// FileStore holds document artifacts. Store rejects unsupported content
// with a file_rejected domain error.
type FileStore interface {
	Store(ctx context.Context, upload models.Upload) (models.FileRef, error)
	Delete(ctx context.Context, ref models.FileRef) error
}

// Notifier delivers one reminder. A nil error means the provider accepted it.
type Notifier interface {
	Send(ctx context.Context, reminder models.Reminder) error
}

// RecipientResolver decides who is told about a document.
type RecipientResolver interface {
	Recipients(ctx context.Context, doc *models.Document) ([]string, error)
}

// EntityDirectory resolves weak entity references to display names.
// Callers treat every error as a miss.
type EntityDirectory interface {
	Resolve(ctx context.Context, entityType models.EntityType, entityID string) (string, error)
}

// Locker grants short exclusive leases keyed by name.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// TxRunner executes fn atomically across stores.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// LogAudit logs an audit line and, when a publisher is configured, emits the
// event. Emission failures are logged, not returned; use it only for events
// outside a transaction.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event audit.Event, attrs ...any) {
	if runID := requestcontext.RunID(ctx); runID != "" {
		attrs = append(attrs, "run_id", runID)
	}
	args := append(attrs, "event", string(event.Action), "aggregate_id", event.AggregateID, "log_type", "audit")
	if logger != nil {
		logger.InfoContext(ctx, string(event.Action), args...)
	}
	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", string(event.Action), "error", err)
	}
}
