// Package service owns the document lifecycle outside renewals: creation,
// reads, edits of descriptive fields and soft deletion.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"fleetdocs/internal/document/classifier"
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

// Type aliases for shared interfaces.
type (
	DocumentStore   = ports.DocumentStore
	FileStore       = ports.FileStore
	EntityDirectory = ports.EntityDirectory
	TxRunner        = ports.TxRunner
	AuditPublisher  = ports.AuditPublisher
)

// CategoryLookup confirms a category exists. Satisfied by category.Service.
type CategoryLookup interface {
	Get(ctx context.Context, categoryID id.CategoryID) (*models.Category, error)
}

type Deps struct {
	Documents  DocumentStore
	Categories CategoryLookup
	Files      FileStore
	Tx         TxRunner
	// Entities is optional; without it entity names are taken as given.
	Entities EntityDirectory
}

type Service struct {
	documents      DocumentStore
	categories     CategoryLookup
	files          FileStore
	entities       EntityDirectory
	tx             TxRunner
	auditPublisher AuditPublisher
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

func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func New(deps Deps, opts ...Option) (*Service, error) {
	switch {
	case deps.Documents == nil:
		return nil, fmt.Errorf("document store is required")
	case deps.Categories == nil:
		return nil, fmt.Errorf("category lookup is required")
	case deps.Files == nil:
		return nil, fmt.Errorf("file store is required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("tx runner is required")
	}
	svc := &Service{
		documents:  deps.Documents,
		categories: deps.Categories,
		files:      deps.Files,
		entities:   deps.Entities,
		tx:         deps.Tx,
		logger:     slog.Default(),
		location:   time.UTC,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateRequest carries a new document. When Upload is non-empty it is stored
// and replaces Params.File.
type CreateRequest struct {
	Params models.DocumentParams
	Upload models.Upload
}

// Create validates, classifies and persists a new document.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Document, error) {
	now := requestcontext.Now(ctx)
	params := req.Params
	if !req.Upload.IsEmpty() {
		if err := filestore.Accept(req.Upload); err != nil {
			return nil, err
		}
		// placeholder so field validation does not report the file as missing
		params.File = models.FileRef{Key: "pending", Name: req.Upload.Name}
	}
	doc, err := models.NewDocument(id.NewDocumentID(), params, now)
	if err != nil {
		return nil, err
	}
	if err := s.requireCategory(ctx, doc.CategoryID); err != nil {
		return nil, err
	}
	s.resolveEntityName(ctx, doc)
	doc.Status = classifier.ForDocument(s.today(now), doc)

	if !req.Upload.IsEmpty() {
		ref, err := s.files.Store(ctx, req.Upload)
		if err != nil {
			return nil, err
		}
		doc.File = ref
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.documents.Create(ctx, doc); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventDocumentCreated, doc, map[string]string{
			"category_id": doc.CategoryID.String(),
			"status":      string(doc.Status),
			"expiry_date": doc.ExpiryDate.Format(time.DateOnly),
		})
	})
	if err != nil {
		if !req.Upload.IsEmpty() {
			s.discardUpload(ctx, doc.File)
		}
		return nil, translate(err, "failed to create document")
	}

	s.logger.InfoContext(ctx, "document created",
		"document_id", doc.ID,
		"category_id", doc.CategoryID,
		"status", doc.Status,
	)
	return doc, nil
}

// Get returns a document with its status reclassified for today; the cached
// column may lag by up to one sweep interval.
func (s *Service) Get(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	doc, err := s.load(ctx, docID)
	if err != nil {
		return nil, err
	}
	doc.Status = classifier.ForDocument(s.today(requestcontext.Now(ctx)), doc)
	return doc, nil
}

// UpdateRequest edits descriptive fields. A non-zero ExpectedVersion must
// match the stored version.
type UpdateRequest struct {
	Patch           models.DocumentPatch
	ExpectedVersion int64
}

// Update applies a patch. Dates and the file are owned by the renewal
// workflow and cannot be edited here.
func (s *Service) Update(ctx context.Context, docID id.DocumentID, req UpdateRequest) (*models.Document, error) {
	if req.Patch.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "patch must change at least one field")
	}
	doc, err := s.load(ctx, docID)
	if err != nil {
		return nil, err
	}
	if req.ExpectedVersion != 0 && req.ExpectedVersion != doc.Version {
		return nil, dErrors.New(dErrors.CodeConflict, "document was modified by another user")
	}

	now := requestcontext.Now(ctx)
	previousCategory := doc.CategoryID
	if err := doc.Apply(req.Patch, now); err != nil {
		return nil, err
	}
	if doc.CategoryID != previousCategory {
		if err := s.requireCategory(ctx, doc.CategoryID); err != nil {
			return nil, err
		}
	}
	if req.Patch.EntityID != nil && req.Patch.EntityName == nil {
		doc.EntityName = ""
		s.resolveEntityName(ctx, doc)
	}
	doc.Status = classifier.ForDocument(s.today(now), doc)

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.documents.Update(ctx, doc); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventDocumentUpdated, doc, map[string]string{
			"version": strconv.FormatInt(doc.Version, 10),
			"status":  string(doc.Status),
		})
	})
	if err != nil {
		return nil, translate(err, "failed to update document")
	}
	return doc, nil
}

// Delete soft-deletes a document. Renewal history and the stored file are
// kept; the document disappears from queries, sweeps and reminders.
func (s *Service) Delete(ctx context.Context, docID id.DocumentID) error {
	doc, err := s.load(ctx, docID)
	if err != nil {
		return err
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		doc.ApplyDeletion(requestcontext.Now(ctx))
		if err := s.documents.Update(ctx, doc); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventDocumentDeleted, doc, nil)
	})
	if err != nil {
		return translate(err, "failed to delete document")
	}
	s.logger.InfoContext(ctx, "document deleted", "document_id", docID)
	return nil
}

func (s *Service) load(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	if docID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document_id is required")
	}
	doc, err := s.documents.FindByID(ctx, docID)
	if err != nil {
		return nil, translate(err, "failed to load document")
	}
	return doc, nil
}

func (s *Service) requireCategory(ctx context.Context, categoryID id.CategoryID) error {
	_, err := s.categories.Get(ctx, categoryID)
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return dErrors.Validation("invalid document", map[string]string{"category_id": "does not exist"})
	}
	return err
}

// resolveEntityName fills a blank entity name from the directory. Misses and
// directory errors leave the name blank.
func (s *Service) resolveEntityName(ctx context.Context, doc *models.Document) {
	if s.entities == nil || doc.EntityName != "" || doc.EntityID == "" {
		return
	}
	name, err := s.entities.Resolve(ctx, doc.EntityType, doc.EntityID)
	if err != nil {
		s.logger.DebugContext(ctx, "entity lookup missed",
			"entity_type", doc.EntityType,
			"entity_id", doc.EntityID,
			"error", err,
		)
		return
	}
	doc.EntityName = name
}

func (s *Service) discardUpload(ctx context.Context, ref models.FileRef) {
	if err := s.files.Delete(ctx, ref); err != nil {
		s.logger.ErrorContext(ctx, "orphaned document file", "file_key", ref.Key, "error", err)
	}
}

func (s *Service) today(now time.Time) time.Time {
	return dates.Today(now, s.location)
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, doc *models.Document, attrs map[string]string) error {
	if s.auditPublisher == nil {
		return nil
	}
	return s.auditPublisher.Emit(ctx, audit.Event{
		Action:        action,
		AggregateType: audit.AggregateDocument,
		AggregateID:   doc.ID.String(),
		Attributes:    attrs,
	})
}

func translate(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "document not found")
	case errors.Is(err, sentinel.ErrStale):
		return dErrors.New(dErrors.CodeConflict, "document was modified concurrently")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "document already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, msg)
	}
}
