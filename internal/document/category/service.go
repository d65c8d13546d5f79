// Package category is the category registry: renewal policies per category and
// their administration.
package category

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fleetdocs/internal/document/models"
	"fleetdocs/internal/document/ports"
	id "fleetdocs/pkg/domain"
	dErrors "fleetdocs/pkg/domain-errors"
	"fleetdocs/pkg/platform/audit"
	"fleetdocs/pkg/platform/dates"
	"fleetdocs/pkg/platform/sentinel"
	"fleetdocs/pkg/requestcontext"
)

// Type aliases for shared interfaces.
type (
	Store          = ports.CategoryStore
	DocumentStore  = ports.DocumentStore
	AuditPublisher = ports.AuditPublisher
	TxRunner       = ports.TxRunner
)

type Service struct {
	store          Store
	documents      DocumentStore
	tx             TxRunner
	auditPublisher AuditPublisher
	logger         *slog.Logger
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

func New(store Store, documents DocumentStore, tx TxRunner, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("category store is required")
	}
	if documents == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner is required")
	}

	svc := &Service{
		store:     store,
		documents: documents,
		tx:        tx,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// GetPolicy returns the renewal policy of a category.
func (s *Service) GetPolicy(ctx context.Context, categoryID id.CategoryID) (models.Policy, error) {
	c, err := s.Get(ctx, categoryID)
	if err != nil {
		return models.Policy{}, err
	}
	return c.Policy(), nil
}

// SuggestRenewalExpiry returns baseDate plus the category's renewal period.
// Categories that do not require renewal have no suggestion.
func (s *Service) SuggestRenewalExpiry(ctx context.Context, categoryID id.CategoryID, baseDate time.Time) (time.Time, error) {
	policy, err := s.GetPolicy(ctx, categoryID)
	if err != nil {
		return time.Time{}, err
	}
	if !policy.RequiresRenewal {
		return time.Time{}, dErrors.New(dErrors.CodeNoRenewalPolicy, "category does not define a renewal policy; an explicit expiry date is required")
	}
	return dates.AddDays(baseDate, policy.RenewalPeriodDays), nil
}

func (s *Service) Get(ctx context.Context, categoryID id.CategoryID) (*models.Category, error) {
	if categoryID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "category_id is required")
	}
	c, err := s.store.FindByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "category not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to load category")
	}
	return c, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Category, error) {
	categories, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to list categories")
	}
	return categories, nil
}

func (s *Service) Create(ctx context.Context, params models.CategoryParams) (*models.Category, error) {
	c, err := models.NewCategory(id.NewCategoryID(), params, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, c); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventCategoryCreated, c)
	})
	if err != nil {
		return nil, s.translateWrite(err, "failed to create category")
	}
	s.logger.InfoContext(ctx, "category created", "category_id", c.ID, "name", c.Name)
	return c, nil
}

func (s *Service) Update(ctx context.Context, categoryID id.CategoryID, patch models.CategoryPatch) (*models.Category, error) {
	var updated *models.Category
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		c, err := s.Get(ctx, categoryID)
		if err != nil {
			return err
		}
		if err := c.Apply(patch, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.store.Update(ctx, c); err != nil {
			return err
		}
		updated = c
		return s.emit(ctx, audit.EventCategoryUpdated, c)
	})
	if err != nil {
		return nil, s.translateWrite(err, "failed to update category")
	}
	return updated, nil
}

// Delete removes a category that no document references, soft-deleted
// documents included.
func (s *Service) Delete(ctx context.Context, categoryID id.CategoryID) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		c, err := s.Get(ctx, categoryID)
		if err != nil {
			return err
		}
		refs, err := s.documents.CountByCategory(ctx, categoryID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to count category references")
		}
		if refs > 0 {
			return referencedError(refs)
		}
		if err := s.store.Delete(ctx, categoryID); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventCategoryDeleted, c)
	})
	if err != nil {
		return s.translateWrite(err, "failed to delete category")
	}
	s.logger.InfoContext(ctx, "category deleted", "category_id", categoryID)
	return nil
}

func referencedError(refs int) error {
	return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("category is referenced by %d document(s)", refs))
}

func (s *Service) translateWrite(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "a category with this name already exists")
	case errors.Is(err, sentinel.ErrReferenced):
		return dErrors.New(dErrors.CodeConflict, "category is still referenced by documents")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "category not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, msg)
	}
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, c *models.Category) error {
	if s.auditPublisher == nil {
		return nil
	}
	return s.auditPublisher.Emit(ctx, audit.Event{
		Action:        action,
		AggregateType: audit.AggregateCategory,
		AggregateID:   c.ID.String(),
		Attributes: map[string]string{
			"name":                c.Name,
			"requires_renewal":    fmt.Sprintf("%t", c.RequiresRenewal),
			"renewal_period_days": fmt.Sprintf("%d", c.RenewalPeriodDays),
		},
	})
}
