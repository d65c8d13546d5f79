package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"fleetdocs/internal/document/classifier"
	"fleetdocs/internal/document/metrics"
	"fleetdocs/internal/document/models"
	"fleetdocs/internal/document/ports/mocks"
	documentStore "fleetdocs/internal/document/store/document"
	id "fleetdocs/pkg/domain"
	dErrors "fleetdocs/pkg/domain-errors"
	"fleetdocs/pkg/platform/audit"
	"fleetdocs/pkg/platform/audit/publisher"
	auditmemory "fleetdocs/pkg/platform/audit/store/memory"
	"fleetdocs/pkg/platform/dates"
	"fleetdocs/pkg/platform/tx"
	"fleetdocs/pkg/requestcontext"
)

// =============================================================================
// Query Service Test Suite
// =============================================================================
// Justification for unit tests: pagination must be stable under ties, the
// returned statuses must be fresh even when the cached column lags, and a bulk
// update must report every id independently.

type QueryServiceSuite struct {
	suite.Suite
	ctx       context.Context
	today     time.Time
	category  id.CategoryID
	documents *documentStore.InMemory
	events    *auditmemory.InMemoryStore
	metrics   *metrics.Metrics
	service   *Service
}

func TestQueryServiceSuite(t *testing.T) {
	suite.Run(t, new(QueryServiceSuite))
}

func (s *QueryServiceSuite) SetupTest() {
	s.today = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.today.Add(9*time.Hour))
	s.category = id.NewCategoryID()
	s.documents = documentStore.NewInMemory()
	s.events = auditmemory.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())

	var err error
	s.service, err = New(s.documents, tx.NewSerial(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(publisher.New(s.events)),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
}

func (s *QueryServiceSuite) seed(title string, expiresIn int, priority models.Priority) *models.Document {
	doc, err := models.NewDocument(id.NewDocumentID(), models.DocumentParams{
		DocumentNumber: "DOC-" + title,
		CategoryID:     s.category,
		Title:          title,
		EntityType:     models.EntityVehicle,
		Priority:       priority,
		IssueDate:      dates.AddDays(s.today, -200),
		ExpiryDate:     dates.AddDays(s.today, expiresIn),
		File:           models.FileRef{Key: "documents/" + title + ".pdf"},
	}, s.today)
	s.Require().NoError(err)
	doc.Status = classifier.ForDocument(s.today, doc)
	s.Require().NoError(s.documents.Create(s.ctx, doc))
	return doc
}

func (s *QueryServiceSuite) TestNew() {
	s.Run("document store is required", func() {
		_, err := New(nil, tx.NewSerial())
		s.ErrorContains(err, "document store is required")
	})
	s.Run("tx runner is required", func() {
		_, err := New(s.documents, nil)
		s.ErrorContains(err, "tx runner is required")
	})
}

// =============================================================================
// Query Tests
// =============================================================================

func (s *QueryServiceSuite) TestQuery_Defaults() {
	s.seed("late", 90, models.PriorityLow)
	s.seed("soon", 5, models.PriorityHigh)

	result, err := s.service.Query(s.ctx, models.Filter{}, models.Sort{}, models.Page{})
	s.Require().NoError(err)
	s.Equal(1, result.Page)
	s.Equal(models.DefaultPageSize, result.Size)
	s.Equal(2, result.Total)
	s.Require().Len(result.Items, 2)
	s.Equal("soon", result.Items[0].Title, "expiry ascending by default")
}

func (s *QueryServiceSuite) TestQuery_RejectsBadInput() {
	s.Run("unknown status", func() {
		_, err := s.service.Query(s.ctx, models.Filter{Status: "ARCHIVED"}, models.Sort{}, models.Page{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("inverted expiry range", func() {
		from, to := dates.AddDays(s.today, 10), s.today
		_, err := s.service.Query(s.ctx, models.Filter{ExpiryFrom: &from, ExpiryTo: &to}, models.Sort{}, models.Page{})
		s.Contains(dErrors.FieldsOf(err), "expiry_range")
	})
	s.Run("unknown sort field", func() {
		_, err := s.service.Query(s.ctx, models.Filter{}, models.Sort{Field: "color"}, models.Page{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *QueryServiceSuite) TestQuery_PaginationIsStableUnderTies() {
	priorities := []models.Priority{models.PriorityLow, models.PriorityMedium, models.PriorityHigh}
	const n = 7
	for i := range n {
		// pairs share expiry, priority and title so every sort field has ties
		s.seed(fmt.Sprintf("tie-%d", i/2), 60+i/2, priorities[i/2%len(priorities)])
	}

	fields := []models.SortField{models.SortByExpiryDate, models.SortByCreatedAt, models.SortByTitle, models.SortByPriority}
	directions := []models.Direction{models.Ascending, models.Descending}
	for _, field := range fields {
		for _, direction := range directions {
			for size := 1; size <= n; size++ {
				s.Run(fmt.Sprintf("%s %s size %d", field, direction, size), func() {
					sort := models.Sort{Field: field, Direction: direction}
					seen := map[id.DocumentID]int{}
					pages := (n + size - 1) / size
					for number := 1; number <= pages; number++ {
						result, err := s.service.Query(s.ctx, models.Filter{}, sort, models.Page{Number: number, Size: size})
						s.Require().NoError(err)
						s.Equal(n, result.Total)
						s.Equal(pages, result.Pages())
						for _, doc := range result.Items {
							seen[doc.ID]++
						}
					}
					s.Len(seen, n)
					for docID, count := range seen {
						s.Equal(1, count, "document %s appeared on more than one page", docID)
					}
				})
			}
		}
	}
}

func (s *QueryServiceSuite) TestQuery_ExpiryRangeComparesWholeDays() {
	s.seed("before", 10, models.PriorityMedium)
	inside := s.seed("inside", 11, models.PriorityMedium)
	s.seed("after", 12, models.PriorityMedium)

	day := dates.AddDays(s.today, 11)
	from, to := day.Add(18*time.Hour), day.Add(6*time.Hour)
	result, err := s.service.Query(s.ctx, models.Filter{ExpiryFrom: &from, ExpiryTo: &to}, models.Sort{}, models.Page{})
	s.Require().NoError(err, "bounds on the same day are not an inverted range")
	s.Require().Len(result.Items, 1)
	s.Equal(inside.ID, result.Items[0].ID)

	s.Run("stores receive day bounds", func() {
		ctrl := gomock.NewController(s.T())
		store := mocks.NewMockDocumentStore(ctrl)
		svc, err := New(store, tx.NewSerial())
		s.Require().NoError(err)

		store.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, f models.Filter, _ models.Sort, _ models.Page) ([]*models.Document, int, error) {
				s.Equal(day, *f.ExpiryFrom)
				s.Equal(day, *f.ExpiryTo)
				return nil, 0, nil
			})
		_, err = svc.Query(s.ctx, models.Filter{ExpiryFrom: &from, ExpiryTo: &to}, models.Sort{}, models.Page{})
		s.Require().NoError(err)
		s.Equal(day.Add(18*time.Hour), from, "the caller's filter is left untouched")
	})
}

// A document stored VALID that has since entered its reminder window is not
// returned for status=VALID, even before the sweep rewrites the column.
func (s *QueryServiceSuite) TestQuery_StatusFilterMatchesReturnedStatus() {
	aging := s.seed("aging", 40, models.PriorityMedium)
	fresh := s.seed("fresh", 200, models.PriorityMedium)
	s.Require().Equal(models.StatusValid, aging.Status)

	later := requestcontext.WithTime(context.Background(), dates.AddDays(s.today, 20))
	result, err := s.service.Query(later, models.Filter{Status: models.StatusValid}, models.Sort{}, models.Page{})
	s.Require().NoError(err)
	s.Require().Len(result.Items, 1)
	s.Equal(fresh.ID, result.Items[0].ID)
	for _, doc := range result.Items {
		s.Equal(models.StatusValid, doc.Status)
	}
}

func (s *QueryServiceSuite) TestQuery_ReclassifiesReturnedStatus() {
	doc := s.seed("aging", 40, models.PriorityMedium)
	s.Require().Equal(models.StatusValid, doc.Status)

	// twenty days later, before any sweep has run
	later := requestcontext.WithTime(context.Background(), dates.AddDays(s.today, 20))
	result, err := s.service.Query(later, models.Filter{}, models.Sort{}, models.Page{})
	s.Require().NoError(err)
	s.Require().Len(result.Items, 1)
	s.Equal(models.StatusExpiringSoon, result.Items[0].Status)
}

func (s *QueryServiceSuite) TestAll_WalksEveryPage() {
	for i := range models.MaxPageSize + 5 {
		s.seed(fmt.Sprintf("doc-%03d", i), 10+i, models.PriorityMedium)
	}

	docs, err := s.service.All(s.ctx, models.Filter{}, models.Sort{Field: models.SortByTitle})
	s.Require().NoError(err)
	s.Len(docs, models.MaxPageSize+5)
	s.Equal("doc-000", docs[0].Title)
}

func (s *QueryServiceSuite) TestQuery_StorageFailure() {
	ctrl := gomock.NewController(s.T())
	store := mocks.NewMockDocumentStore(ctrl)
	svc, err := New(store, tx.NewSerial())
	s.Require().NoError(err)

	store.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, 0, errors.New("connection reset"))
	_, err = svc.Query(s.ctx, models.Filter{}, models.Sort{}, models.Page{})
	s.True(dErrors.HasCode(err, dErrors.CodeStorageFailure))
}

// =============================================================================
// BulkSetStatus Tests
// =============================================================================

func (s *QueryServiceSuite) TestBulkSetStatus_PartialFailure() {
	first := s.seed("first", 10, models.PriorityHigh)
	second := s.seed("second", 100, models.PriorityLow)
	missing := id.NewDocumentID()

	result, err := s.service.BulkSetStatus(s.ctx, []id.DocumentID{first.ID, missing, second.ID}, models.StatusRenewalInProgress)
	s.Require().NoError(err)
	s.Equal(2, result.Succeeded)
	s.Equal(1, result.Failed)
	s.Require().Len(result.Items, 3)
	s.True(result.Items[0].OK)
	s.False(result.Items[1].OK)
	s.True(dErrors.HasCode(result.Items[1].Err, dErrors.CodeNotFound))
	s.True(result.Items[2].OK)

	for _, docID := range []id.DocumentID{first.ID, second.ID} {
		stored, err := s.documents.FindByID(s.ctx, docID)
		s.Require().NoError(err)
		s.Equal(models.StatusRenewalInProgress, stored.Status)
		s.NotNil(stored.RenewalStartedAt)

		events, err := s.events.ListByAggregate(s.ctx, docID.String())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.EventDocumentStatusChanged, events[0].Action)
		s.Equal("bulk", events[0].Attributes["source"])
	}

	s.Equal(2.0, testutil.ToFloat64(s.metrics.BulkItems.WithLabelValues("ok")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.BulkItems.WithLabelValues("failed")))
}

func (s *QueryServiceSuite) TestBulkSetStatus_RenewalAlreadyInProgress() {
	doc := s.seed("busy", 10, models.PriorityHigh)
	_, err := s.service.BulkSetStatus(s.ctx, []id.DocumentID{doc.ID}, models.StatusRenewalInProgress)
	s.Require().NoError(err)

	result, err := s.service.BulkSetStatus(s.ctx, []id.DocumentID{doc.ID}, models.StatusRenewalInProgress)
	s.Require().NoError(err)
	s.Equal(1, result.Failed)
	s.True(dErrors.HasCode(result.Items[0].Err, dErrors.CodeRenewalConflict))
}

func (s *QueryServiceSuite) TestBulkSetStatus_LeavingRenewalClearsMarker() {
	doc := s.seed("paused", -1, models.PriorityHigh)
	_, err := s.service.BulkSetStatus(s.ctx, []id.DocumentID{doc.ID}, models.StatusRenewalInProgress)
	s.Require().NoError(err)

	result, err := s.service.BulkSetStatus(s.ctx, []id.DocumentID{doc.ID}, models.StatusExpired)
	s.Require().NoError(err)
	s.Equal(1, result.Succeeded)

	stored, err := s.documents.FindByID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, stored.Status)
	s.Nil(stored.RenewalStartedAt)
}

func (s *QueryServiceSuite) TestBulkSetStatus_UnchangedStatusWritesNothing() {
	doc := s.seed("steady", 100, models.PriorityLow)

	result, err := s.service.BulkSetStatus(s.ctx, []id.DocumentID{doc.ID}, models.StatusValid)
	s.Require().NoError(err)
	s.Equal(1, result.Succeeded)

	stored, err := s.documents.FindByID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(doc.Version, stored.Version)

	events, err := s.events.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *QueryServiceSuite) TestBulkSetStatus_RejectsBadRequests() {
	s.Run("invalid status", func() {
		_, err := s.service.BulkSetStatus(s.ctx, []id.DocumentID{id.NewDocumentID()}, "ARCHIVED")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
	s.Run("no ids", func() {
		_, err := s.service.BulkSetStatus(s.ctx, nil, models.StatusValid)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
	s.Run("too many ids", func() {
		ids := make([]id.DocumentID, maxBulkItems+1)
		_, err := s.service.BulkSetStatus(s.ctx, ids, models.StatusValid)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
