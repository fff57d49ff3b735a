// Package sqlxrepos implements the core repository contracts on PostgreSQL
// via sqlx. Models cross the boundary as core types; row structs stay here.
package sqlxrepos

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// noRows replaces sql.ErrNoRows with the owning package's sentinel so
// services can compare with ==.
func noRows(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

// isUniqueViolation reports whether err is a PG unique_violation, optionally
// narrowed to a named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
