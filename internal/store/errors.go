package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ErrGrantNotFound reports a grant that is missing or soft-deleted.
var ErrGrantNotFound = errors.New("grant not found")

// ErrVersionConflict reports a conditional write rejected because the
// grant's version no longer matches the caller's last read. The write is
// discarded, never merged; the caller must re-read and recompute.
var ErrVersionConflict = errors.New("grant version conflict")

// ErrNoPrice reports that no price snapshot covers a vest date. Absence of
// a price is permitted (events store a NULL snapshot), so callers treat
// this as a signal, not a failure.
var ErrNoPrice = errors.New("no price snapshot on or before date")

// ConstraintError reports a storage-level uniqueness or foreign-key
// violation. The enclosing transaction has been rolled back in full.
type ConstraintError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *ConstraintError) Error() string {
	return fmt.Sprintf("CONSTRAINT_VIOLATION: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying driver error.
func (e *ConstraintError) Unwrap() error { return e.Err }

// IsConstraintError reports whether err is a storage constraint violation.
// Uses errors.As to handle wrapped errors.
func IsConstraintError(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce)
}

// wrapWriteError maps SQLite constraint failures to *ConstraintError and
// passes everything else through with the operation name attached.
func wrapWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return &ConstraintError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
