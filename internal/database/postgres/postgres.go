package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const uniqueViolationErrCode = "23505"

// Constraint names from the migrations. Create distinguishes them to tell a
// slug collision from a canonical URL duplicate.
const (
	slugConstraint         = "urls_slug_key"
	canonicalURLConstraint = "urls_canonical_url_key"
)

func uniqueViolationConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.SQLState() == uniqueViolationErrCode {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func isUnavailableError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err)
}
