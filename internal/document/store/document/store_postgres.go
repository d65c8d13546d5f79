package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"fleetdocs/internal/document/models"
	id "fleetdocs/pkg/domain"
	"fleetdocs/pkg/platform/pgerr"
	"fleetdocs/pkg/platform/sentinel"
	txcontext "fleetdocs/pkg/platform/tx"
)

// PostgresStore persists documents in PostgreSQL.
// This store is pure I/O; classification and validation belong to services.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const documentColumns = `
	id, document_number, category_id, title, description, document_type,
	entity_type, entity_id, entity_name, tags::text AS tags, notes, priority,
	issue_date, expiry_date, renewal_date, reminder_days, status,
	file_key, file_url, file_name, file_size, file_content_type,
	renewal_started_at, version, created_at, updated_at, deleted_at`

type documentRow struct {
	ID              uuid.UUID      `db:"id"`
	DocumentNumber  string         `db:"document_number"`
	CategoryID      uuid.UUID      `db:"category_id"`
	Title           string         `db:"title"`
	Description     string         `db:"description"`
	DocumentType    string         `db:"document_type"`
	EntityType      string         `db:"entity_type"`
	EntityID        string         `db:"entity_id"`
	EntityName      string         `db:"entity_name"`
	Tags            pq.StringArray `db:"tags"`
	Notes           string         `db:"notes"`
	Priority        string         `db:"priority"`
	IssueDate       time.Time      `db:"issue_date"`
	ExpiryDate      time.Time      `db:"expiry_date"`
	RenewalDate     sql.NullTime   `db:"renewal_date"`
	ReminderDays    int            `db:"reminder_days"`
	Status          string         `db:"status"`
	FileKey         string         `db:"file_key"`
	FileURL         string         `db:"file_url"`
	FileName        string         `db:"file_name"`
	FileSize        int64          `db:"file_size"`
	FileContentType string         `db:"file_content_type"`
	RenewalStarted  sql.NullTime   `db:"renewal_started_at"`
	Version         int64          `db:"version"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	DeletedAt       sql.NullTime   `db:"deleted_at"`
}

func (r documentRow) toModel() *models.Document {
	tags := []string(r.Tags)
	if tags == nil {
		tags = []string{}
	}
	return &models.Document{
		ID:             id.DocumentID(r.ID),
		DocumentNumber: r.DocumentNumber,
		CategoryID:     id.CategoryID(r.CategoryID),
		Title:          r.Title,
		Description:    r.Description,
		DocumentType:   r.DocumentType,
		EntityType:     models.EntityType(r.EntityType),
		EntityID:       r.EntityID,
		EntityName:     r.EntityName,
		Tags:           tags,
		Notes:          r.Notes,
		Priority:       models.Priority(r.Priority),
		IssueDate:      r.IssueDate.UTC(),
		ExpiryDate:     r.ExpiryDate.UTC(),
		RenewalDate:    nullTime(r.RenewalDate),
		ReminderDays:   r.ReminderDays,
		Status:         models.Status(r.Status),
		File: models.FileRef{
			Key:         r.FileKey,
			URL:         r.FileURL,
			Name:        r.FileName,
			Size:        r.FileSize,
			ContentType: r.FileContentType,
		},
		RenewalStartedAt: nullTime(r.RenewalStarted),
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		DeletedAt:        nullTime(r.DeletedAt),
	}
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (
			id, document_number, category_id, title, description, document_type,
			entity_type, entity_id, entity_name, tags, notes, priority,
			issue_date, expiry_date, renewal_date, reminder_days, status,
			file_key, file_url, file_name, file_size, file_content_type,
			renewal_started_at, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, 1, $24, $25)
	`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(doc.ID),
		doc.DocumentNumber,
		uuid.UUID(doc.CategoryID),
		doc.Title,
		doc.Description,
		doc.DocumentType,
		string(doc.EntityType),
		doc.EntityID,
		doc.EntityName,
		pq.Array(doc.Tags),
		doc.Notes,
		string(doc.Priority),
		doc.IssueDate,
		doc.ExpiryDate,
		doc.RenewalDate,
		doc.ReminderDays,
		string(doc.Status),
		doc.File.Key,
		doc.File.URL,
		doc.File.Name,
		doc.File.Size,
		doc.File.ContentType,
		doc.RenewalStartedAt,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		if pgerr.IsForeignKeyViolation(err) {
			return fmt.Errorf("create document: unknown category: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("create document: %w", err)
	}
	doc.Version = 1
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND deleted_at IS NULL`
	var row documentRow
	if err := sqlx.GetContext(ctx, txcontext.Executor(ctx, s.db), &row, query, uuid.UUID(docID)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return row.toModel(), nil
}

// Update is a conditional write on (id, version). Zero affected rows means
// the document vanished or another writer bumped the version first.
func (s *PostgresStore) Update(ctx context.Context, doc *models.Document) error {
	query := `
		UPDATE documents SET
			document_number = $3, category_id = $4, title = $5, description = $6,
			document_type = $7, entity_type = $8, entity_id = $9, entity_name = $10,
			tags = $11, notes = $12, priority = $13, expiry_date = $14, renewal_date = $15,
			reminder_days = $16, status = $17, file_key = $18, file_url = $19,
			file_name = $20, file_size = $21, file_content_type = $22,
			renewal_started_at = $23, updated_at = $24, deleted_at = $25,
			version = version + 1
		WHERE id = $1 AND version = $2 AND deleted_at IS NULL
	`
	exec := txcontext.Executor(ctx, s.db)
	result, err := exec.ExecContext(ctx, query,
		uuid.UUID(doc.ID),
		doc.Version,
		doc.DocumentNumber,
		uuid.UUID(doc.CategoryID),
		doc.Title,
		doc.Description,
		doc.DocumentType,
		string(doc.EntityType),
		doc.EntityID,
		doc.EntityName,
		pq.Array(doc.Tags),
		doc.Notes,
		string(doc.Priority),
		doc.ExpiryDate,
		doc.RenewalDate,
		doc.ReminderDays,
		string(doc.Status),
		doc.File.Key,
		doc.File.URL,
		doc.File.Name,
		doc.File.Size,
		doc.File.ContentType,
		doc.RenewalStartedAt,
		doc.UpdatedAt,
		doc.DeletedAt,
	)
	if err != nil {
		if pgerr.IsForeignKeyViolation(err) {
			return fmt.Errorf("update document: unknown category: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("update document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		err := sqlx.GetContext(ctx, exec, &exists,
			`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1 AND deleted_at IS NULL)`, uuid.UUID(doc.ID))
		if err != nil {
			return fmt.Errorf("check document existence: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrStale
	}
	doc.Version++
	return nil
}

func (s *PostgresStore) ListAfter(ctx context.Context, after id.DocumentID, limit int) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + `
		FROM documents
		WHERE id > $1 AND deleted_at IS NULL
		ORDER BY id
		LIMIT $2`
	var rows []documentRow
	if err := sqlx.SelectContext(ctx, txcontext.Executor(ctx, s.db), &rows, query, uuid.UUID(after), limit); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return toModels(rows), nil
}

// CountByCategory counts every document referencing the category, including
// soft-deleted ones, since their history still points at it.
func (s *PostgresStore) CountByCategory(ctx context.Context, categoryID id.CategoryID) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, txcontext.Executor(ctx, s.db), &n,
		`SELECT COUNT(*) FROM documents WHERE category_id = $1`, uuid.UUID(categoryID))
	if err != nil {
		return 0, fmt.Errorf("count documents by category: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Query(ctx context.Context, filter models.Filter, sort models.Sort, page models.Page) ([]*models.Document, int, error) {
	where, args := buildWhere(filter)
	exec := txcontext.Executor(ctx, s.db)

	var total int
	if err := sqlx.GetContext(ctx, exec, &total, `SELECT COUNT(*) FROM documents WHERE `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	args = append(args, page.Size, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		documentColumns, where, orderBy(sort), len(args)-1, len(args))
	var rows []documentRow
	if err := sqlx.SelectContext(ctx, exec, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("query documents: %w", err)
	}
	return toModels(rows), total, nil
}

func toModels(rows []documentRow) []*models.Document {
	docs := make([]*models.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.toModel())
	}
	return docs
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func buildWhere(f models.Filter) (string, []any) {
	f = f.Normalized()
	clauses := []string{"deleted_at IS NULL"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if term := strings.TrimSpace(f.Search); term != "" {
		p := arg("%" + likeEscaper.Replace(term) + "%")
		clauses = append(clauses, fmt.Sprintf("(title ILIKE %[1]s OR document_number ILIKE %[1]s OR description ILIKE %[1]s)", p))
	}
	if f.Status != "" {
		clauses = append(clauses, "status = "+arg(string(f.Status)))
	}
	if f.CategoryID != nil {
		clauses = append(clauses, "category_id = "+arg(uuid.UUID(*f.CategoryID)))
	}
	if f.EntityType != "" {
		clauses = append(clauses, "entity_type = "+arg(string(f.EntityType)))
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id = "+arg(f.EntityID))
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority = "+arg(string(f.Priority)))
	}
	if f.ExpiryFrom != nil {
		clauses = append(clauses, "expiry_date >= "+arg(*f.ExpiryFrom))
	}
	if f.ExpiryTo != nil {
		clauses = append(clauses, "expiry_date <= "+arg(*f.ExpiryTo))
	}
	return strings.Join(clauses, " AND "), args
}

// orderBy only ever interpolates fixed fragments, never caller input.
func orderBy(s models.Sort) string {
	var column string
	switch s.Field {
	case models.SortByCreatedAt:
		column = "created_at"
	case models.SortByTitle:
		column = `lower(title) COLLATE "C"`
	case models.SortByPriority:
		column = "CASE priority WHEN 'LOW' THEN 1 WHEN 'MEDIUM' THEN 2 WHEN 'HIGH' THEN 3 WHEN 'CRITICAL' THEN 4 ELSE 0 END"
	default:
		column = "expiry_date"
	}
	dir := "ASC"
	if s.Direction == models.Descending {
		dir = "DESC"
	}
	return column + " " + dir + ", id ASC"
}
