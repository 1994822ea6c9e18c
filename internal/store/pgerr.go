package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrSchemaMissing means a query hit a table that does not exist, i.e. the
// migrations have not been applied to this database.
var ErrSchemaMissing = errors.New("schema not migrated")

// ErrDuplicateJob means an insert collided with an existing job ID.
var ErrDuplicateJob = errors.New("job id already exists")

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// 42P01 undefined_table
func isUndefinedTable(err error) bool { return pgCode(err) == "42P01" }

// 23505 unique_violation
func isUniqueViolation(err error) bool { return pgCode(err) == "23505" }
