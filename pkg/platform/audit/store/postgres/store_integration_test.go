//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	audit "fleetdocs/pkg/platform/audit"
	"fleetdocs/pkg/platform/audit/store/postgres"
	"fleetdocs/pkg/platform/tx"
	"fleetdocs/pkg/testutil/containers"
)

type OutboxSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	tx       *tx.Postgres
}

func TestOutboxSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OutboxSuite))
}

func (s *OutboxSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
	s.tx = tx.NewPostgres(s.postgres.DB, 0)
}

func (s *OutboxSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "outbox"))
}

func (s *OutboxSuite) event(at time.Time) audit.Event {
	return audit.Event{
		ID:            uuid.New(),
		Action:        audit.EventDocumentStatusChanged,
		Timestamp:     at,
		AggregateType: audit.AggregateDocument,
		AggregateID:   uuid.NewString(),
		Attributes:    map[string]string{"from": "VALID", "to": "EXPIRING_SOON"},
	}
}

func (s *OutboxSuite) TestAppendFollowsTransaction() {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Append(ctx, s.event(now)); err != nil {
			return err
		}
		return errors.New("abort")
	})
	s.Require().Error(err)

	pending, err := s.store.Pending(ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending, "rolled back events never reach the outbox")

	committed := s.event(now)
	s.Require().NoError(s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.Append(ctx, committed)
	}))
	pending, err = s.store.Pending(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(committed.ID, pending[0].ID)
	s.Equal(string(audit.EventDocumentStatusChanged), pending[0].EventType)
}

func (s *OutboxSuite) TestPendingOrderAndMarkPublished() {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		e := s.event(base.Add(time.Duration(2-i) * time.Minute))
		ids = append(ids, e.ID)
		s.Require().NoError(s.store.Append(ctx, e))
	}

	pending, err := s.store.Pending(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 3)
	s.Equal([]uuid.UUID{ids[2], ids[1], ids[0]}, []uuid.UUID{pending[0].ID, pending[1].ID, pending[2].ID})

	s.Require().NoError(s.store.MarkPublished(ctx, []uuid.UUID{ids[2], ids[1]}, base.Add(time.Hour)))
	pending, err = s.store.Pending(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(ids[0], pending[0].ID)
}
