// Package renewal implements the renewal workflow: an optional in-progress
// marker, the atomic renewal commit and its history.
package renewal

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
	"fleetdocs/internal/filestore"
	id "fleetdocs/pkg/domain"
	dErrors "fleetdocs/pkg/domain-errors"
	"fleetdocs/pkg/platform/audit"
	"fleetdocs/pkg/platform/dates"
	"fleetdocs/pkg/platform/sentinel"
	"fleetdocs/pkg/requestcontext"
)

const (
	defaultGuardTTL = 2 * time.Minute
	maxNotesLength  = 4000
)

// Type aliases for shared interfaces.
type (
	DocumentStore  = ports.DocumentStore
	RecordStore    = ports.RenewalStore
	FileStore      = ports.FileStore
	Locker         = ports.Locker
	TxRunner       = ports.TxRunner
	AuditPublisher = ports.AuditPublisher
)

// PolicySource suggests a renewal expiry from a document's category.
type PolicySource interface {
	SuggestRenewalExpiry(ctx context.Context, categoryID id.CategoryID, baseDate time.Time) (time.Time, error)
}

type Service struct {
	documents      DocumentStore
	records        RecordStore
	policies       PolicySource
	files          FileStore
	locker         Locker
	tx             TxRunner
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
	location       *time.Location
	guardTTL       time.Duration
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

// WithLocation sets the zone whose calendar decides what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithGuardTTL bounds how long a crashed renewal can hold its document.
func WithGuardTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.guardTTL = ttl
		}
	}
}

// Deps groups the collaborators the workflow cannot run without.
type Deps struct {
	Documents DocumentStore
	Records   RecordStore
	Policies  PolicySource
	Files     FileStore
	Locker    Locker
	Tx        TxRunner
}

func New(deps Deps, opts ...Option) (*Service, error) {
	switch {
	case deps.Documents == nil:
		return nil, fmt.Errorf("document store is required")
	case deps.Records == nil:
		return nil, fmt.Errorf("renewal store is required")
	case deps.Policies == nil:
		return nil, fmt.Errorf("policy source is required")
	case deps.Files == nil:
		return nil, fmt.Errorf("file store is required")
	case deps.Locker == nil:
		return nil, fmt.Errorf("locker is required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("tx runner is required")
	}

	svc := &Service{
		documents: deps.Documents,
		records:   deps.Records,
		policies:  deps.Policies,
		files:     deps.Files,
		locker:    deps.Locker,
		tx:        deps.Tx,
		logger:    slog.Default(),
		location:  time.UTC,
		guardTTL:  defaultGuardTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// BeginRenewal marks a document RENEWAL_IN_PROGRESS. The marker is optional;
// CompleteRenewal works without it.
func (s *Service) BeginRenewal(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	var doc *models.Document
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.load(ctx, docID)
		if err != nil {
			return err
		}
		if doc.InRenewal() {
			return dErrors.New(dErrors.CodeRenewalConflict, "renewal already in progress")
		}
		previous := doc.Status
		doc.ApplyStatus(models.StatusRenewalInProgress, requestcontext.Now(ctx))
		if err := s.documents.Update(ctx, doc); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventRenewalStarted, doc, map[string]string{
			"previous_status": string(previous),
		})
	})
	if err != nil {
		return nil, s.translate(err, "failed to begin renewal")
	}
	return doc, nil
}

// CancelRenewal clears the in-progress marker and restores the status the
// classifier derives from the dates. Cancelling a document that is not in
// renewal is a no-op.
func (s *Service) CancelRenewal(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	var doc *models.Document
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.load(ctx, docID)
		if err != nil {
			return err
		}
		if !doc.InRenewal() {
			return nil
		}
		now := requestcontext.Now(ctx)
		doc.ApplyStatus(classifier.DateStatus(s.today(now), doc), now)
		if err := s.documents.Update(ctx, doc); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventRenewalCancelled, doc, map[string]string{
			"status": string(doc.Status),
		})
	})
	if err != nil {
		return nil, s.translate(err, "failed to cancel renewal")
	}
	return doc, nil
}

// CompleteRenewal moves a document into its next validity cycle.
//
// Validation happens before any side effect. The file is uploaded under the
// per-document guard, then the document update, the renewal record and the
// document_renewed event commit in one transaction. A failed transaction
// deletes the upload; a failed delete is logged as an orphaned file.
func (s *Service) CompleteRenewal(ctx context.Context, req models.RenewalRequest) (*models.Document, *models.RenewalRecord, error) {
	now := requestcontext.Now(ctx)
	today := s.today(now)

	if err := validateRequest(req, today); err != nil {
		return nil, nil, err
	}
	doc, err := s.load(ctx, req.DocumentID)
	if err != nil {
		return nil, nil, s.translate(err, "failed to load document")
	}
	newExpiry, err := s.resolveExpiry(ctx, doc, req)
	if err != nil {
		return nil, nil, err
	}

	token, ok, err := s.locker.TryLock(ctx, guardKey(doc.ID), s.guardTTL)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to acquire renewal guard")
	}
	if !ok {
		s.metrics.IncRenewalConflict()
		return nil, nil, dErrors.New(dErrors.CodeRenewalConflict, "another renewal for this document is being committed")
	}
	defer s.release(ctx, doc.ID, token)

	ref, err := s.files.Store(ctx, req.File)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeFileRejected) {
			return nil, nil, err
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to store renewal file")
	}

	record := &models.RenewalRecord{
		ID:                 id.NewRenewalID(),
		DocumentID:         doc.ID,
		RenewalDate:        dates.Day(req.RenewalDate),
		PreviousExpiryDate: doc.ExpiryDate,
		NewExpiryDate:      newExpiry,
		File:               ref,
		PreviousFile:       doc.File,
		Notes:              req.Notes,
		ActorID:            requestcontext.ActorID(ctx),
		CreatedAt:          now,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		doc.ApplyRenewal(record.RenewalDate, newExpiry, ref, now)
		doc.ApplyStatus(classifier.DateStatus(today, doc), now)
		if err := s.documents.Update(ctx, doc); err != nil {
			return err
		}
		if err := s.records.Append(ctx, record); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventDocumentRenewed, doc, map[string]string{
			"renewal_id":           record.ID.String(),
			"previous_expiry_date": record.PreviousExpiryDate.Format(time.DateOnly),
			"new_expiry_date":      record.NewExpiryDate.Format(time.DateOnly),
			"status":               string(doc.Status),
		})
	})
	if err != nil {
		s.discardUpload(ctx, doc.ID, ref)
		if errors.Is(err, sentinel.ErrStale) {
			s.metrics.IncRenewalConflict()
		}
		return nil, nil, s.translate(err, "failed to commit renewal")
	}

	s.metrics.IncRenewalCompleted()
	s.logger.InfoContext(ctx, "document renewed",
		"document_id", doc.ID,
		"renewal_id", record.ID,
		"previous_expiry_date", record.PreviousExpiryDate.Format(time.DateOnly),
		"new_expiry_date", record.NewExpiryDate.Format(time.DateOnly),
		"status", doc.Status,
	)
	return doc, record, nil
}

// History returns the document's renewal records, oldest first.
func (s *Service) History(ctx context.Context, docID id.DocumentID) ([]models.RenewalRecord, error) {
	if _, err := s.load(ctx, docID); err != nil {
		return nil, s.translate(err, "failed to load document")
	}
	records, err := s.records.ListByDocument(ctx, docID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to list renewal history")
	}
	return records, nil
}

func validateRequest(req models.RenewalRequest, today time.Time) error {
	fields := dErrors.FieldErrors{}
	if req.DocumentID.IsNil() {
		fields.Add("document_id", "is required")
	}
	switch {
	case req.RenewalDate.IsZero():
		fields.Add("renewal_date", "is required")
	case dates.After(req.RenewalDate, today):
		fields.Add("renewal_date", "must not be in the future")
	}
	if req.NewExpiryDate != nil && !req.RenewalDate.IsZero() && !dates.After(*req.NewExpiryDate, req.RenewalDate) {
		fields.Add("new_expiry_date", "must be after renewal_date")
	}
	if req.File.IsEmpty() {
		fields.Add("file", "is required")
	}
	if len(req.Notes) > maxNotesLength {
		fields.Add("notes", "must be 4000 characters or less")
	}
	if err := fields.Err("invalid renewal"); err != nil {
		return err
	}
	return filestore.Accept(req.File)
}

// resolveExpiry returns the caller's expiry or the category suggestion, and
// enforces that the new cycle ends after both the renewal date and the
// current expiry.
func (s *Service) resolveExpiry(ctx context.Context, doc *models.Document, req models.RenewalRequest) (time.Time, error) {
	var expiry time.Time
	if req.NewExpiryDate != nil {
		expiry = dates.Day(*req.NewExpiryDate)
	} else {
		suggested, err := s.policies.SuggestRenewalExpiry(ctx, doc.CategoryID, req.RenewalDate)
		if err != nil {
			return time.Time{}, err
		}
		expiry = dates.Day(suggested)
	}

	fields := dErrors.FieldErrors{}
	if !dates.After(expiry, req.RenewalDate) {
		fields.Add("new_expiry_date", "must be after renewal_date")
	}
	if !dates.After(expiry, doc.ExpiryDate) {
		fields.Add("new_expiry_date", "must be after the current expiry date "+doc.ExpiryDate.Format(time.DateOnly))
	}
	if err := fields.Err("invalid renewal"); err != nil {
		return time.Time{}, err
	}
	return expiry, nil
}

func (s *Service) load(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	if docID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document_id is required")
	}
	return s.documents.FindByID(ctx, docID)
}

func (s *Service) release(ctx context.Context, docID id.DocumentID, token string) {
	if err := s.locker.Unlock(context.WithoutCancel(ctx), guardKey(docID), token); err != nil {
		s.logger.WarnContext(ctx, "failed to release renewal guard", "document_id", docID, "error", err)
	}
}

func (s *Service) discardUpload(ctx context.Context, docID id.DocumentID, ref models.FileRef) {
	if err := s.files.Delete(context.WithoutCancel(ctx), ref); err != nil {
		s.metrics.IncOrphanedFile()
		s.logger.ErrorContext(ctx, "orphaned renewal file",
			"document_id", docID,
			"file_key", ref.Key,
			"error", err,
		)
	}
}

func (s *Service) translate(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "document not found")
	case errors.Is(err, sentinel.ErrStale):
		return dErrors.New(dErrors.CodeRenewalConflict, "document changed while the renewal was being applied; reload and retry")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeRenewalConflict, "renewal record already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, msg)
	}
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, doc *models.Document, attrs map[string]string) error {
	if s.auditPublisher == nil {
		return nil
	}
	if attrs == nil {
		attrs = map[string]string{}
	}
	attrs["document_number"] = doc.DocumentNumber
	attrs["expiry_date"] = doc.ExpiryDate.Format(time.DateOnly)
	return s.auditPublisher.Emit(ctx, audit.Event{
		Action:        action,
		AggregateType: audit.AggregateDocument,
		AggregateID:   doc.ID.String(),
		Attributes:    attrs,
	})
}

func (s *Service) today(now time.Time) time.Time {
	return dates.Today(now, s.location)
}

func guardKey(docID id.DocumentID) string {
	return "renewal:" + docID.String()
}
