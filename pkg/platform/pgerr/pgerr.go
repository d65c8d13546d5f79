// Package pgerr classifies PostgreSQL errors surfaced through the pgx driver.
package pgerr

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func code(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func IsUniqueViolation(err error) bool { return code(err) == codeUniqueViolation }

func IsForeignKeyViolation(err error) bool { return code(err) == codeForeignKeyViolation }
