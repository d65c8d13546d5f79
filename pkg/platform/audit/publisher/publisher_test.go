package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "fleetdocs/pkg/platform/audit"
	"fleetdocs/pkg/platform/audit/store/memory"
	"fleetdocs/pkg/requestcontext"
)

func documentEvent(action audit.AuditEvent, aggregateID string) audit.Event {
	return audit.Event{
		Action:        action,
		AggregateType: audit.AggregateDocument,
		AggregateID:   aggregateID,
	}
}

func TestPublisher_FillsDefaultsFromContext(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)
	defer pub.Close()

	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithActorID(ctx, "fleet-manager")
	ctx = requestcontext.WithRunID(ctx, "req-1")

	require.NoError(t, pub.Emit(ctx, documentEvent(audit.EventDocumentCreated, "doc-1")))

	events, err := store.ListByAggregate(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, now, events[0].Timestamp)
	assert.Equal(t, "fleet-manager", events[0].ActorID)
	assert.Equal(t, "req-1", events[0].RunID)
	assert.NotEqual(t, "", events[0].ID.String())
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)

	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	event := documentEvent(audit.EventDocumentUpdated, "doc-2")
	event.Timestamp = custom
	require.NoError(t, pub.Emit(context.Background(), event))

	events, err := store.ListByAggregate(context.Background(), "doc-2")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, custom, events[0].Timestamp)
}

func TestPublisher_RejectsIncompleteEvents(t *testing.T) {
	pub := New(memory.NewInMemoryStore())

	err := pub.Emit(context.Background(), audit.Event{AggregateID: "doc"})
	assert.ErrorIs(t, err, errMissingAction)

	err = pub.Emit(context.Background(), audit.Event{Action: audit.EventDocumentCreated})
	assert.ErrorIs(t, err, errMissingAggregate)
}

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error { return errors.New("db down") }

func TestPublisher_FailClosed(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	pub := New(failingStore{}, WithMetrics(m))

	err := pub.Emit(context.Background(), documentEvent(audit.EventDocumentRenewed, "doc-3"))
	require.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PersistFailures))
}

func TestPublisher_CountsByCategory(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	pub := New(memory.NewInMemoryStore(), WithMetrics(m))

	require.NoError(t, pub.Emit(context.Background(), documentEvent(audit.EventDocumentRenewed, "a")))
	require.NoError(t, pub.Emit(context.Background(), documentEvent(audit.EventDocumentStatusChanged, "a")))
	require.NoError(t, pub.Emit(context.Background(), documentEvent(audit.EventReminderSent, "a")))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsEmitted.WithLabelValues("compliance")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.EventsEmitted.WithLabelValues("operations")))
}
