package fixed

import (
	"errors"
	"fmt"
)

// PrecisionError reports a value with a nonzero digit past the third
// decimal place. Precision is validated before any value reaches storage.
type PrecisionError struct {
	// Value is the offending value, rendered as a string.
	Value string
}

// Error implements the error interface.
func (e *PrecisionError) Error() string {
	return fmt.Sprintf("PRECISION_INVALID: %s has more than %d decimal places", e.Value, Places)
}

// IsPrecisionError reports whether err is a PrecisionError.
// Uses errors.As to handle wrapped errors.
func IsPrecisionError(err error) bool {
	var pe *PrecisionError
	return errors.As(err, &pe)
}
