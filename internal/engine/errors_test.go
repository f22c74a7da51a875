package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := &Error{Code: ErrCodeConflict, Message: "lost the race", GrantID: "g-1"}
	assert.Equal(t, "VERSION_CONFLICT: lost the race (grant=g-1)", err.Error())

	err = &Error{Code: ErrCodeNotFound, Message: "gone"}
	assert.Equal(t, "GRANT_NOT_FOUND: gone", err.Error())
}

func TestErrorPredicates(t *testing.T) {
	conflict := newConflictError("g-1", nil)
	notFound := newNotFoundError("g-2", "missing", nil)

	assert.True(t, IsConflict(conflict))
	assert.False(t, IsConflict(notFound))
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsNotFound(conflict))
	assert.False(t, IsConflict(errors.New("plain")))
}

func TestErrorPredicates_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("pass failed: %w", newConflictError("g-1", nil))
	assert.True(t, IsConflict(wrapped))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("version mismatch")
	err := newConflictError("g-1", cause)
	assert.ErrorIs(t, err, cause)
}
