package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func pgErrCode(err error) string {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		return pgerr.Code
	}
	return ""
}

// IsDuplicate reports a unique constraint violation. Partial unique indexes
// (one open bid per partner and delivery) surface through here too.
func IsDuplicate(err error) bool {
	return pgErrCode(err) == "23505"
}

// IsNotFound reports that a single-row query matched nothing.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
