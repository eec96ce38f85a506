package shared

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes relevant to write paths.
const (
	pgUniqueViolation = "23505"
)

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
