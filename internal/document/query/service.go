// Package query serves filtered, sorted, paginated document listings and the
// bulk status update.
package query

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
	dErrors "fleetdocs/pkg/domain-errors"
	"fleetdocs/pkg/platform/audit"
	"fleetdocs/pkg/platform/dates"
	"fleetdocs/pkg/platform/sentinel"
	"fleetdocs/pkg/requestcontext"
)

const maxBulkItems = 500

// Type aliases for shared interfaces.
type (
	DocumentStore  = ports.DocumentStore
	TxRunner       = ports.TxRunner
	AuditPublisher = ports.AuditPublisher
)

type Service struct {
	documents      DocumentStore
	tx             TxRunner
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
	location       *time.Location
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func New(documents DocumentStore, tx TxRunner, opts ...Option) (*Service, error) {
	if documents == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	svc := &Service{
		documents: documents,
		tx:        tx,
		logger:    slog.Default(),
		location:  time.UTC,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Query returns one page of live documents matching filter. Filters are
// AND-combined; ties in the sort order break on ID so pages never overlap.
// Expiry bounds compare whole calendar days.
//
// Returned statuses are reclassified against today. The status filter runs on
// the stored status, so with a status filter an item whose status moved since
// the last sweep is left out of the page; Total still counts it until the
// sweep catches up.
func (s *Service) Query(ctx context.Context, filter models.Filter, sort models.Sort, page models.Page) (models.PageResult, error) {
	filter = filter.Normalized()
	if err := filter.Validate(); err != nil {
		return models.PageResult{}, err
	}
	sort, err := models.NormalizeSort(sort)
	if err != nil {
		return models.PageResult{}, err
	}
	page = models.NormalizePage(page)

	items, total, err := s.documents.Query(ctx, filter, sort, page)
	if err != nil {
		return models.PageResult{}, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to query documents")
	}

	today := dates.Today(requestcontext.Now(ctx), s.location)
	kept := items[:0]
	for _, doc := range items {
		doc.Status = classifier.ForDocument(today, doc)
		if filter.Status != "" && doc.Status != filter.Status {
			s.logger.DebugContext(ctx, "dropping document whose status moved since the last sweep",
				"document_id", doc.ID,
				"filtered", filter.Status,
				"current", doc.Status,
			)
			continue
		}
		kept = append(kept, doc)
	}
	return models.PageResult{Items: kept, Total: total, Page: page.Number, Size: page.Size}, nil
}

// All walks every page for filter, for exports.
func (s *Service) All(ctx context.Context, filter models.Filter, sort models.Sort) ([]*models.Document, error) {
	var out []*models.Document
	page := models.Page{Number: 1, Size: models.MaxPageSize}
	for {
		result, err := s.Query(ctx, filter, sort, page)
		if err != nil {
			return nil, err
		}
		out = append(out, result.Items...)
		if page.Number >= result.Pages() {
			return out, nil
		}
		page.Number++
	}
}

// BulkSetStatus applies status to each document independently and reports
// per-id outcomes. One failure never rolls back another.
//
// Setting RENEWAL_IN_PROGRESS opens the renewal marker and fails with a
// renewal conflict on documents already in renewal. Any other status clears
// the marker. Date-derived statuses are a cache; the next sweep reconciles
// them with the classifier.
func (s *Service) BulkSetStatus(ctx context.Context, docIDs []id.DocumentID, status models.Status) (models.BulkResult, error) {
	if !status.IsValid() {
		return models.BulkResult{}, dErrors.New(dErrors.CodeInvalidInput, "invalid status: "+string(status))
	}
	if len(docIDs) == 0 {
		return models.BulkResult{}, dErrors.New(dErrors.CodeInvalidInput, "ids must not be empty")
	}
	if len(docIDs) > maxBulkItems {
		return models.BulkResult{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("at most %d ids per request", maxBulkItems))
	}

	result := models.BulkResult{Items: make([]models.BulkItemResult, 0, len(docIDs))}
	for _, docID := range docIDs {
		err := s.setStatus(ctx, docID, status)
		if err != nil {
			s.logger.WarnContext(ctx, "bulk status update failed", "document_id", docID, "status", status, "error", err)
		}
		s.metrics.IncBulkItem(err == nil)
		result.Add(docID, err)
	}
	return result, nil
}

func (s *Service) setStatus(ctx context.Context, docID id.DocumentID, status models.Status) error {
	if docID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "document_id is required")
	}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := s.documents.FindByID(ctx, docID)
		if err != nil {
			return err
		}
		if status == models.StatusRenewalInProgress && doc.InRenewal() {
			return dErrors.New(dErrors.CodeRenewalConflict, "renewal already in progress")
		}
		if doc.Status == status {
			return nil
		}
		previous := doc.Status
		doc.ApplyStatus(status, requestcontext.Now(ctx))
		if err := s.documents.Update(ctx, doc); err != nil {
			return err
		}
		if s.auditPublisher == nil {
			return nil
		}
		return s.auditPublisher.Emit(ctx, audit.Event{
			Action:        audit.EventDocumentStatusChanged,
			AggregateType: audit.AggregateDocument,
			AggregateID:   doc.ID.String(),
			Attributes: map[string]string{
				"from":   string(previous),
				"to":     string(status),
				"source": "bulk",
			},
		})
	})

	var de *dErrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "document not found")
	case errors.Is(err, sentinel.ErrStale):
		return dErrors.New(dErrors.CodeConflict, "document was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to update status")
	}
}
