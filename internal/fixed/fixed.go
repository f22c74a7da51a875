// Package fixed provides fixed-point share arithmetic at 3 decimal places.
//
// All share counts in the ledger are Amounts: integer-scaled decimals
// (scale 1000) with round-half-to-even semantics applied at every operation,
// not just at presentation time. Binary floats never appear in the public
// surface.
package fixed

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Places is the fixed precision of every Amount: 3 decimal digits.
const Places int32 = 3

// Amount is an immutable share quantity with exactly 3 decimal places.
//
// The zero value is a valid Amount equal to 0.000.
type Amount struct {
	d decimal.Decimal
}

// Zero is the 0.000 amount.
var Zero = Amount{}

// New returns an Amount for a whole number of shares.
func New(n int64) Amount {
	return Amount{d: decimal.NewFromInt(n)}
}

// FromDecimal converts a decimal value to an Amount.
// Returns *PrecisionError if the value carries a nonzero digit past the
// third decimal place.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	if !d.Equal(d.Truncate(Places)) {
		return Amount{}, &PrecisionError{Value: d.String()}
	}
	return Amount{d: d}, nil
}

// Parse parses a decimal string into an Amount.
// Rejects malformed input and values with more than 3 decimal digits.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// MustParse is like Parse but panics on error. For constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err.Error())
	}
	return a
}

// Add returns a + b. Addition of 3-place values is exact.
func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }

// Sub returns a - b. Subtraction of 3-place values is exact.
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }

// Mul returns a * b rounded half-to-even back to 3 places.
func (a Amount) Mul(b Amount) Amount {
	return Amount{d: a.d.Mul(b.d).RoundBank(Places)}
}

// MulInt returns a * n. Multiplication by an integer is exact.
func (a Amount) MulInt(n int64) Amount {
	return Amount{d: a.d.Mul(decimal.NewFromInt(n))}
}

// Div returns a / b computed with extended intermediate precision and then
// rounded half-to-even to 3 places: Div(1,3)=0.333, Div(2,3)=0.667.
// Returns an error when b is zero.
func (a Amount) Div(b Amount) (Amount, error) {
	if b.IsZero() {
		return Amount{}, fmt.Errorf("divide %s by zero", a)
	}
	// decimal.Div carries DivisionPrecision (16) fractional digits, well past
	// the one extra digit the rounding boundary needs.
	return Amount{d: a.d.Div(b.d).RoundBank(Places)}, nil
}

// DivInt returns a / n rounded half-to-even to 3 places.
func (a Amount) DivInt(n int64) (Amount, error) {
	return a.Div(New(n))
}

// Round applies round-half-to-even at the given decimal position.
// The result is still a 3-place Amount: Round(0) of 1.5 is 2.000, Round(3)
// of an exact 0.0025 intermediate is 0.002.
func (a Amount) Round(places int32) Amount {
	return Amount{d: a.d.RoundBank(places)}
}

func (a Amount) Cmp(b Amount) int          { return a.d.Cmp(b.d) }
func (a Amount) Equal(b Amount) bool       { return a.d.Equal(b.d) }
func (a Amount) LessThan(b Amount) bool    { return a.d.LessThan(b.d) }
func (a Amount) GreaterThan(b Amount) bool { return a.d.GreaterThan(b.d) }
func (a Amount) IsZero() bool              { return a.d.IsZero() }
func (a Amount) IsPositive() bool          { return a.d.IsPositive() }
func (a Amount) IsNegative() bool          { return a.d.IsNegative() }

// String renders the amount with exactly 3 decimal digits, e.g. "20.833".
func (a Amount) String() string { return a.d.StringFixed(Places) }

// Decimal returns the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal { return a.d }

// MarshalJSON renders the amount as a JSON string to avoid float readers.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON parses either a JSON string or a bare number.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer. Amounts are stored as TEXT.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner for TEXT and BLOB columns.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case []byte:
		return a.Scan(string(v))
	case nil:
		*a = Zero
		return nil
	default:
		return fmt.Errorf("scan amount: unsupported type %T", src)
	}
}
