//go:build integration

package document_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fleetdocs/internal/document/models"
	categorystore "fleetdocs/internal/document/store/category"
	"fleetdocs/internal/document/store/document"
	id "fleetdocs/pkg/domain"
	"fleetdocs/pkg/platform/dates"
	"fleetdocs/pkg/platform/sentinel"
	"fleetdocs/pkg/platform/tx"
	"fleetdocs/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *document.PostgresStore
	tx       *tx.Postgres
	category id.CategoryID
	base     time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = document.NewPostgres(s.postgres.DB)
	s.tx = tx.NewPostgres(s.postgres.DB, 0)
	s.base = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "documents", "categories", "renewal_records", "reminder_states", "outbox"))

	c, err := models.NewCategory(id.NewCategoryID(), models.CategoryParams{
		Name:              "Vehicle Insurance",
		RequiresRenewal:   true,
		RenewalPeriodDays: 365,
	}, s.base)
	s.Require().NoError(err)
	s.Require().NoError(categorystore.NewPostgres(s.postgres.DB).Create(ctx, c))
	s.category = c.ID
}

func (s *PostgresStoreSuite) newDoc(title string, expiryOffset int) *models.Document {
	return &models.Document{
		ID:             id.NewDocumentID(),
		DocumentNumber: "NUM-" + title,
		CategoryID:     s.category,
		Title:          title,
		EntityType:     models.EntityVehicle,
		EntityID:       "van-7",
		Tags:           []string{"fleet", "insurance"},
		Priority:       models.PriorityHigh,
		IssueDate:      dates.AddDays(s.base, -365),
		ExpiryDate:     dates.AddDays(s.base, expiryOffset),
		ReminderDays:   30,
		Status:         models.StatusValid,
		File:           models.FileRef{Key: "docs/" + title, Name: title + ".pdf", Size: 2048, ContentType: "application/pdf"},
		CreatedAt:      s.base,
		UpdatedAt:      s.base,
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	doc := s.newDoc("policy", 40)
	s.Require().NoError(s.store.Create(ctx, doc))
	s.Equal(int64(1), doc.Version)

	found, err := s.store.FindByID(ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(doc.Title, found.Title)
	s.Equal([]string{"fleet", "insurance"}, found.Tags)
	s.True(doc.ExpiryDate.Equal(found.ExpiryDate))
	s.Equal(doc.File, found.File)
	s.Nil(found.RenewalStartedAt)
}

func (s *PostgresStoreSuite) TestCreateUnknownCategory() {
	doc := s.newDoc("orphan", 10)
	doc.CategoryID = id.NewCategoryID()
	s.ErrorIs(s.store.Create(context.Background(), doc), sentinel.ErrNotFound)
}

// TestConcurrentUpdatesSingleWinner verifies the version CAS lets exactly one
// of many writers holding the same version through.
func (s *PostgresStoreSuite) TestConcurrentUpdatesSingleWinner() {
	ctx := context.Background()
	doc := s.newDoc("contended", 40)
	s.Require().NoError(s.store.Create(ctx, doc))

	const writers = 20
	var wg sync.WaitGroup
	var won, stale atomic.Int32
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cp := *doc
			cp.Notes = fmt.Sprintf("writer %d", i)
			err := s.store.Update(ctx, &cp)
			switch {
			case err == nil:
				won.Add(1)
			case errors.Is(err, sentinel.ErrStale):
				stale.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), won.Load())
	s.Equal(int32(writers-1), stale.Load())

	found, err := s.store.FindByID(ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), found.Version)
}

func (s *PostgresStoreSuite) TestSoftDelete() {
	ctx := context.Background()
	doc := s.newDoc("retired", 40)
	s.Require().NoError(s.store.Create(ctx, doc))

	deletedAt := s.base.Add(time.Hour)
	doc.DeletedAt = &deletedAt
	s.Require().NoError(s.store.Update(ctx, doc))

	_, err := s.store.FindByID(ctx, doc.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.ErrorIs(s.store.Update(ctx, doc), sentinel.ErrNotFound, "deleted documents reject further writes")

	n, err := s.store.CountByCategory(ctx, s.category)
	s.Require().NoError(err)
	s.Equal(1, n, "soft-deleted documents still reference their category")
}

func (s *PostgresStoreSuite) TestRollbackDiscardsWrites() {
	ctx := context.Background()
	doc := s.newDoc("rolled-back", 40)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, doc); err != nil {
			return err
		}
		return errors.New("abort")
	})
	s.Require().Error(err)

	_, err = s.store.FindByID(ctx, doc.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestQuery() {
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		s.Require().NoError(s.store.Create(ctx, s.newDoc(fmt.Sprintf("tied-%d", i), 30)))
	}
	expired := s.newDoc("lapsed", -3)
	expired.Status = models.StatusExpired
	s.Require().NoError(s.store.Create(ctx, expired))

	s.Run("pages over ties are disjoint and complete", func() {
		seen := map[id.DocumentID]bool{}
		sort := models.Sort{Field: models.SortByExpiryDate, Direction: models.Ascending}
		for page := 1; page <= 3; page++ {
			items, total, err := s.store.Query(ctx, models.Filter{}, sort, models.Page{Number: page, Size: 3})
			s.Require().NoError(err)
			s.Equal(8, total)
			for _, d := range items {
				s.False(seen[d.ID], "document %s repeated", d.Title)
				seen[d.ID] = true
			}
		}
		s.Len(seen, 8)
	})

	s.Run("filters combine", func() {
		items, total, err := s.store.Query(ctx,
			models.Filter{Status: models.StatusExpired, EntityType: models.EntityVehicle},
			models.Sort{Field: models.SortByTitle, Direction: models.Ascending},
			models.Page{Number: 1, Size: 10})
		s.Require().NoError(err)
		s.Equal(1, total)
		s.Require().Len(items, 1)
		s.Equal("lapsed", items[0].Title)
	})

	s.Run("search escapes wildcards", func() {
		_, total, err := s.store.Query(ctx, models.Filter{Search: "%"},
			models.Sort{Field: models.SortByTitle, Direction: models.Ascending},
			models.Page{Number: 1, Size: 10})
		s.Require().NoError(err)
		s.Zero(total)
	})
}

func (s *PostgresStoreSuite) TestListAfter() {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.store.Create(ctx, s.newDoc(fmt.Sprintf("batch-%d", i), 30)))
	}

	var after id.DocumentID
	var total int
	for {
		batch, err := s.store.ListAfter(ctx, after, 2)
		s.Require().NoError(err)
		if len(batch) == 0 {
			break
		}
		total += len(batch)
		after = batch[len(batch)-1].ID
	}
	s.Equal(5, total)
}
