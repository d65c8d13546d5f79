package category

import (
	"context"
	"database/sql"
	"errors"
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

// PostgresStore persists categories. Case-insensitive name uniqueness is
// enforced by a unique index on name_key.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type categoryRow struct {
	ID                uuid.UUID `db:"id"`
	Name              string    `db:"name"`
	Color             string    `db:"color"`
	Icon              string    `db:"icon"`
	RequiresRenewal   bool      `db:"requires_renewal"`
	RenewalPeriodDays int       `db:"renewal_period_days"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r categoryRow) toModel() *models.Category {
	return &models.Category{
		ID:                id.CategoryID(r.ID),
		Name:              r.Name,
		Color:             r.Color,
		Icon:              r.Icon,
		RequiresRenewal:   r.RequiresRenewal,
		RenewalPeriodDays: r.RenewalPeriodDays,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

const categoryColumns = `id, name, color, icon, requires_renewal, renewal_period_days, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, c *models.Category) error {
	query := `
		INSERT INTO categories (id, name, name_key, color, icon, requires_renewal, renewal_period_days, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(c.ID), c.Name, c.NameKey(), c.Color, c.Icon,
		c.RequiresRenewal, c.RenewalPeriodDays, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, categoryID id.CategoryID) (*models.Category, error) {
	return s.findOne(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, uuid.UUID(categoryID))
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*models.Category, error) {
	return s.findOne(ctx, `SELECT `+categoryColumns+` FROM categories WHERE name_key = $1`, models.CategoryNameKey(name))
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.Category, error) {
	var row categoryRow
	if err := sqlx.GetContext(ctx, txcontext.Executor(ctx, s.db), &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find category: %w", err)
	}
	return row.toModel(), nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Category, error) {
	var rows []categoryRow
	query := `SELECT ` + categoryColumns + ` FROM categories ORDER BY name_key COLLATE "C", id`
	if err := sqlx.SelectContext(ctx, txcontext.Executor(ctx, s.db), &rows, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]*models.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, c *models.Category) error {
	query := `
		UPDATE categories SET
			name = $2, name_key = $3, color = $4, icon = $5,
			requires_renewal = $6, renewal_period_days = $7, updated_at = $8
		WHERE id = $1
	`
	result, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(c.ID), c.Name, c.NameKey(), c.Color, c.Icon,
		c.RequiresRenewal, c.RenewalPeriodDays, c.UpdatedAt,
	)
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update category: %w", err)
	}
	return requireAffected(result)
}

// Delete removes the category. The documents foreign key is ON DELETE
// RESTRICT, so a referenced category surfaces as ErrReferenced.
func (s *PostgresStore) Delete(ctx context.Context, categoryID id.CategoryID) error {
	result, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM categories WHERE id = $1`, uuid.UUID(categoryID))
	if err != nil {
		if pgerr.IsForeignKeyViolation(err) {
			return sentinel.ErrReferenced
		}
		return fmt.Errorf("delete category: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
