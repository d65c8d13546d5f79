package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetdocs/internal/document/models"
	id "fleetdocs/pkg/domain"
)

func TestGetAbsentReturnsNil(t *testing.T) {
	st, err := NewInMemory().Get(context.Background(), id.NewDocumentID())
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestUpsertOverwrites(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	docID := id.NewDocumentID()
	sent := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	expiry := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Upsert(ctx, &models.ReminderState{
		DocumentID: docID, LastSentAt: &sent, LastForExpiryDate: &expiry, LastKind: models.ReminderExpiringSoon,
	}))
	require.NoError(t, store.Upsert(ctx, &models.ReminderState{
		DocumentID: docID, LastSentAt: &sent, LastForExpiryDate: &expiry, LastKind: models.ReminderExpired,
	}))

	st, err := store.Get(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, models.ReminderExpired, st.LastKind)

	many, err := store.GetMany(ctx, []id.DocumentID{docID, id.NewDocumentID()})
	require.NoError(t, err)
	assert.Len(t, many, 1)
}
