package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"khata/internal/core/apperror"
)

// SQLSTATE codes that signal lock or serialization contention. The losing
// transaction rolled back cleanly, so the caller may retry the whole request.
const (
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
	sqlstateLockNotAvailable     = "55P03"
)

// translateError maps driver-level failures onto the platform error codes.
// Contention becomes a retryable concurrency conflict, any other database
// error becomes a persistence error. Errors that already carry an
// application code pass through untouched.
func translateError(err error) error {
	if err == nil || apperror.IsAppError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateSerializationFailure, sqlstateDeadlockDetected, sqlstateLockNotAvailable:
			return apperror.NewConcurrencyConflict("transaction", pgErr.Code).WithCause(err)
		}
		return apperror.NewPersistence(err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return apperror.NewPersistence(err)
	}

	return err
}
