package engine

import (
	"errors"
	"fmt"
)

// Error represents a failure detected during a materialization or repair
// pass. It carries structured fields for diagnostics and recovery.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// GrantID identifies the affected grant.
	GrantID string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeConflict indicates the optimistic version check failed:
	// another writer advanced the grant mid-pass. Expected and recoverable
	// by re-running from a fresh read.
	ErrCodeConflict ErrorCode = "VERSION_CONFLICT"

	// ErrCodeNotFound indicates the grant is missing, inactive, or
	// soft-deleted. The pass is skipped, not retried.
	ErrCodeNotFound ErrorCode = "GRANT_NOT_FOUND"

	// ErrCodeConstraint indicates a storage uniqueness or foreign-key
	// violation surfaced beneath the engine's own checks.
	ErrCodeConstraint ErrorCode = "CONSTRAINT_VIOLATION"

	// ErrCodeLedgerDrift indicates applying a tranche would push the
	// running total past the grant's total - the ledger needs repair
	// before materialization can continue.
	ErrCodeLedgerDrift ErrorCode = "LEDGER_DRIFT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.GrantID != "" {
		return fmt.Sprintf("%s: %s (grant=%s)", e.Code, e.Message, e.GrantID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// IsConflict reports whether err is an optimistic-concurrency conflict.
// Uses errors.As to handle wrapped errors.
func IsConflict(err error) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Code == ErrCodeConflict
}

// IsNotFound reports whether err is a missing/inactive/deleted grant.
func IsNotFound(err error) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Code == ErrCodeNotFound
}

// IsConstraint reports whether err is a storage constraint violation.
func IsConstraint(err error) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Code == ErrCodeConstraint
}

// newConflictError wraps a version-check failure.
func newConflictError(grantID string, err error) *Error {
	return &Error{
		Code:    ErrCodeConflict,
		Message: "grant was modified concurrently; re-run materialization from a fresh read",
		GrantID: grantID,
		Err:     err,
	}
}

// newNotFoundError reports a grant the pass cannot operate on.
func newNotFoundError(grantID, reason string, err error) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: reason,
		GrantID: grantID,
		Err:     err,
	}
}
