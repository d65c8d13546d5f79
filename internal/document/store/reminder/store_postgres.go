package reminder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"fleetdocs/internal/document/models"
	id "fleetdocs/pkg/domain"
	txcontext "fleetdocs/pkg/platform/tx"
)

// PostgresStore keeps one reminder_states row per document.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type stateRow struct {
	DocumentID        uuid.UUID      `db:"document_id"`
	LastSentAt        sql.NullTime   `db:"last_sent_at"`
	LastForExpiryDate sql.NullTime   `db:"last_for_expiry_date"`
	LastKind          sql.NullString `db:"last_kind"`
}

func (r stateRow) toModel() *models.ReminderState {
	st := &models.ReminderState{DocumentID: id.DocumentID(r.DocumentID)}
	if r.LastSentAt.Valid {
		t := r.LastSentAt.Time
		st.LastSentAt = &t
	}
	if r.LastForExpiryDate.Valid {
		t := r.LastForExpiryDate.Time.UTC()
		st.LastForExpiryDate = &t
	}
	if r.LastKind.Valid {
		st.LastKind = models.ReminderKind(r.LastKind.String)
	}
	return st
}

func (s *PostgresStore) Get(ctx context.Context, docID id.DocumentID) (*models.ReminderState, error) {
	query := `
		SELECT document_id, last_sent_at, last_for_expiry_date, last_kind
		FROM reminder_states
		WHERE document_id = $1
	`
	var row stateRow
	if err := sqlx.GetContext(ctx, txcontext.Executor(ctx, s.db), &row, query, uuid.UUID(docID)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reminder state: %w", err)
	}
	return row.toModel(), nil
}

func (s *PostgresStore) GetMany(ctx context.Context, docIDs []id.DocumentID) (map[id.DocumentID]*models.ReminderState, error) {
	out := make(map[id.DocumentID]*models.ReminderState, len(docIDs))
	if len(docIDs) == 0 {
		return out, nil
	}
	raw := make([]string, len(docIDs))
	for i, d := range docIDs {
		raw[i] = d.String()
	}
	query := `
		SELECT document_id, last_sent_at, last_for_expiry_date, last_kind
		FROM reminder_states
		WHERE document_id = ANY($1::uuid[])
	`
	var rows []stateRow
	if err := sqlx.SelectContext(ctx, txcontext.Executor(ctx, s.db), &rows, query, pq.Array(raw)); err != nil {
		return nil, fmt.Errorf("get reminder states: %w", err)
	}
	for _, r := range rows {
		st := r.toModel()
		out[st.DocumentID] = st
	}
	return out, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, st *models.ReminderState) error {
	query := `
		INSERT INTO reminder_states (document_id, last_sent_at, last_for_expiry_date, last_kind)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_id) DO UPDATE SET
			last_sent_at = EXCLUDED.last_sent_at,
			last_for_expiry_date = EXCLUDED.last_for_expiry_date,
			last_kind = EXCLUDED.last_kind
	`
	var kind sql.NullString
	if st.LastKind != "" {
		kind = sql.NullString{String: string(st.LastKind), Valid: true}
	}
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(st.DocumentID), st.LastSentAt, st.LastForExpiryDate, kind)
	if err != nil {
		return fmt.Errorf("upsert reminder state: %w", err)
	}
	return nil
}
