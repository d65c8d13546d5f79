package renewal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetdocs/internal/document/models"
	id "fleetdocs/pkg/domain"
	"fleetdocs/pkg/platform/sentinel"
)

func TestAppendAndListOrdersByCreatedAt(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	docID := id.NewDocumentID()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	later := models.RenewalRecord{ID: id.NewRenewalID(), DocumentID: docID, CreatedAt: base.Add(time.Hour)}
	earlier := models.RenewalRecord{ID: id.NewRenewalID(), DocumentID: docID, CreatedAt: base}
	require.NoError(t, store.Append(ctx, &later))
	require.NoError(t, store.Append(ctx, &earlier))
	require.NoError(t, store.Append(ctx, &models.RenewalRecord{ID: id.NewRenewalID(), DocumentID: id.NewDocumentID()}))

	history, err := store.ListByDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, earlier.ID, history[0].ID)
	assert.Equal(t, later.ID, history[1].ID)

	assert.ErrorIs(t, store.Append(ctx, &earlier), sentinel.ErrConflict)
}

func TestListUnknownDocumentIsEmpty(t *testing.T) {
	history, err := NewInMemory().ListByDocument(context.Background(), id.NewDocumentID())
	require.NoError(t, err)
	assert.Empty(t, history)
}
