package engine

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// The engine surfaces four distinct, inspectable error kinds so callers
// can choose between user messaging and retry. Every kind aborts the
// enclosing transaction; nothing is recovered silently.

// ValidationError reports malformed input, rejected before any
// mutation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Msg
}

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a referenced row that does not exist, rejected
// before any mutation.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ConflictError reports lock contention or a stale read on a schedule
// being advanced concurrently. The caller should retry the whole
// operation.
type ConflictError struct {
	Op  string
	Err error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s: %v", e.Op, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// StorageError wraps an underlying persistence failure. The transaction
// is rolled back and the original cause preserved for logging.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// wrapDB converts a low-level database error into the engine taxonomy.
// Postgres serialization and lock failures become ConflictError so the
// caller knows a retry may succeed; everything else not already
// classified becomes StorageError.
func wrapDB(op string, err error) error {
	var ve *ValidationError
	var nfe *NotFoundError
	var ce *ConflictError
	var se *StorageError
	if errors.As(err, &ve) || errors.As(err, &nfe) || errors.As(err, &ce) || errors.As(err, &se) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03": // serialization, deadlock, lock not available
			return &ConflictError{Op: op, Err: err}
		}
	}
	return &StorageError{Op: op, Err: err}
}
