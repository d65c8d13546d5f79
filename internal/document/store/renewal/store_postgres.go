package renewal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fleetdocs/internal/document/models"
	id "fleetdocs/pkg/domain"
	"fleetdocs/pkg/platform/pgerr"
	"fleetdocs/pkg/platform/sentinel"
	txcontext "fleetdocs/pkg/platform/tx"
)

// PostgresStore appends renewal records. Rows are never updated or deleted.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type recordRow struct {
	ID                  uuid.UUID `db:"id"`
	DocumentID          uuid.UUID `db:"document_id"`
	RenewalDate         time.Time `db:"renewal_date"`
	PreviousExpiryDate  time.Time `db:"previous_expiry_date"`
	NewExpiryDate       time.Time `db:"new_expiry_date"`
	FileKey             string    `db:"file_key"`
	FileURL             string    `db:"file_url"`
	FileName            string    `db:"file_name"`
	FileSize            int64     `db:"file_size"`
	FileContentType     string    `db:"file_content_type"`
	PrevFileKey         string    `db:"previous_file_key"`
	PrevFileURL         string    `db:"previous_file_url"`
	PrevFileName        string    `db:"previous_file_name"`
	PrevFileSize        int64     `db:"previous_file_size"`
	PrevFileContentType string    `db:"previous_file_content_type"`
	Notes               string    `db:"notes"`
	ActorID             string    `db:"actor_id"`
	CreatedAt           time.Time `db:"created_at"`
}

func (s *PostgresStore) Append(ctx context.Context, r *models.RenewalRecord) error {
	query := `
		INSERT INTO renewal_records (
			id, document_id, renewal_date, previous_expiry_date, new_expiry_date,
			file_key, file_url, file_name, file_size, file_content_type,
			previous_file_key, previous_file_url, previous_file_name,
			previous_file_size, previous_file_content_type,
			notes, actor_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(r.ID), uuid.UUID(r.DocumentID),
		r.RenewalDate, r.PreviousExpiryDate, r.NewExpiryDate,
		r.File.Key, r.File.URL, r.File.Name, r.File.Size, r.File.ContentType,
		r.PreviousFile.Key, r.PreviousFile.URL, r.PreviousFile.Name,
		r.PreviousFile.Size, r.PreviousFile.ContentType,
		r.Notes, r.ActorID, r.CreatedAt,
	)
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		if pgerr.IsForeignKeyViolation(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("append renewal record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByDocument(ctx context.Context, docID id.DocumentID) ([]models.RenewalRecord, error) {
	query := `
		SELECT id, document_id, renewal_date, previous_expiry_date, new_expiry_date,
			file_key, file_url, file_name, file_size, file_content_type,
			previous_file_key, previous_file_url, previous_file_name,
			previous_file_size, previous_file_content_type,
			notes, actor_id, created_at
		FROM renewal_records
		WHERE document_id = $1
		ORDER BY created_at, id
	`
	var rows []recordRow
	if err := sqlx.SelectContext(ctx, txcontext.Executor(ctx, s.db), &rows, query, uuid.UUID(docID)); err != nil {
		return nil, fmt.Errorf("list renewal records: %w", err)
	}
	out := make([]models.RenewalRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.RenewalRecord{
			ID:                 id.RenewalID(r.ID),
			DocumentID:         id.DocumentID(r.DocumentID),
			RenewalDate:        r.RenewalDate.UTC(),
			PreviousExpiryDate: r.PreviousExpiryDate.UTC(),
			NewExpiryDate:      r.NewExpiryDate.UTC(),
			File: models.FileRef{
				Key: r.FileKey, URL: r.FileURL, Name: r.FileName,
				Size: r.FileSize, ContentType: r.FileContentType,
			},
			PreviousFile: models.FileRef{
				Key: r.PrevFileKey, URL: r.PrevFileURL, Name: r.PrevFileName,
				Size: r.PrevFileSize, ContentType: r.PrevFileContentType,
			},
			Notes:     r.Notes,
			ActorID:   r.ActorID,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}
