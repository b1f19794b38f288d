package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrOpenConnection    = errors.New("failed to open db connection")
	ErrParseConfig       = errors.New("failed to parse db config")
	ErrHealthcheckFailed = errors.New("healthcheck failed, connection is not available")
	ErrApplyMigrations   = errors.New("failed to apply migrations")
)

// IsNotFound detects pgx.ErrNoRows for consistent "not found" handling.
func IsNotFound(err error) bool {
	return err != nil && errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKey detects unique constraint violations (SQLSTATE 23505),
// e.g. inserting a job row whose id already exists.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolation detects referential integrity violations
// (SQLSTATE 23503), e.g. an item row pointing at a missing job.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
