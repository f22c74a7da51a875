// Package date provides a day-granularity calendar date type.
//
// Vesting schedules are calendar computations: a vest date is a date, never
// an instant, and month arithmetic must clamp to month ends rather than
// overflow. Date keeps that arithmetic away from time.Time's timezone and
// clock semantics.
package date

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Format is the string representation of a Date, ISO-8601 day precision.
const Format = "2006-01-02"

// Date represents a calendar date with no time-of-day component.
type Date struct {
	y int
	m time.Month
	d int
}

// New returns a normalized Date for the given year, month, and day.
// Out-of-range components normalize the way time.Date does.
func New(year int, month time.Month, day int) Date {
	d := Date{year, month, day}
	d.y, d.m, d.d = d.time().Date()
	return d
}

// Today returns the current date in the local timezone.
func Today() Date { return New(time.Now().Date()) }

// Parse parses an ISO-8601 date string ("2006-01-02").
func Parse(s string) (Date, error) {
	t, err := time.Parse(Format, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want format %q: %w", s, Format, err)
	}
	return New(t.Date()), nil
}

// MustParse is like Parse but panics on error. For constants and tests.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err.Error())
	}
	return d
}

// time returns the canonical instant for the date: midnight UTC.
func (d Date) time() time.Time {
	return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC)
}

// Year returns the year.
func (d Date) Year() int { return d.y }

// Month returns the month.
func (d Date) Month() time.Month { return d.m }

// Day returns the day of the month.
func (d Date) Day() int { return d.d }

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// Before reports whether d is before x.
func (d Date) Before(x Date) bool { return d.time().Before(x.time()) }

// After reports whether d is after x.
func (d Date) After(x Date) bool { return d.time().After(x.time()) }

// Compare returns -1, 0, or +1 ordering d against x.
func (d Date) Compare(x Date) int { return d.time().Compare(x.time()) }

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date { return New(d.y, d.m, d.d+n) }

// AddMonthsClamped returns the date n calendar months after d, with the
// day-of-month clamped to the last valid day of the target month. A date on
// the 31st advanced into a 30-day month lands on the 30th; it never
// overflows into the following month.
func (d Date) AddMonthsClamped(n int) Date {
	// Normalize year/month via the first of the target month, then clamp.
	first := time.Date(d.y, d.m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	day := d.d
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return New(first.Year(), first.Month(), day)
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// String formats the date as ISO-8601.
func (d Date) String() string { return d.time().Format(Format) }

// MarshalJSON renders the date as an ISO-8601 JSON string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON parses an ISO-8601 JSON string.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML renders the date as an ISO-8601 scalar.
func (d Date) MarshalYAML() (any, error) { return d.String(), nil }

// UnmarshalYAML parses an ISO-8601 scalar.
func (d *Date) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer. Dates are stored as TEXT.
func (d Date) Value() (driver.Value, error) { return d.String(), nil }

// Scan implements sql.Scanner for TEXT columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	case time.Time:
		*d = New(v.Date())
		return nil
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
}

var _ json.Marshaler = Date{}
var _ json.Unmarshaler = (*Date)(nil)
