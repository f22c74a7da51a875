// Package schedule derives deterministic vesting schedules from grant terms.
//
// Generation is a pure function of (grant date, total, plan): no I/O, no
// clock, same inputs always produce the same schedule. Callers recompute it
// on every materialization pass instead of caching it.
package schedule

import (
	"fmt"

	"github.com/grantline/vestd/internal/date"
	"github.com/grantline/vestd/internal/fixed"
	"github.com/grantline/vestd/internal/plan"
)

// Tranche is one scheduled vesting installment.
type Tranche struct {
	// Period is the 1-based monthly period index.
	Period int `json:"period"`

	// Date is the vest date: grant date plus Period months, day-of-month
	// clamped to the target month's last valid day.
	Date date.Date `json:"date"`

	// Amount is the share quantity vesting in this period.
	Amount fixed.Amount `json:"amount"`

	// Cliff marks a period held back by the cliff. Cliff is metadata: the
	// generator emits cliff periods like any other and leaves withholding
	// to the materializer.
	Cliff bool `json:"cliff"`
}

// Generate returns the full vesting schedule for a grant, ordered by period.
//
// Every period from 1 to the plan's term gets a standard tranche of
// round(total/term) at 3 decimal places, except the last period, which gets
// the exact remainder total - (term-1)*standard. The schedule therefore sums
// to total exactly regardless of divisibility.
func Generate(grantDate date.Date, total fixed.Amount, p plan.Plan) ([]Tranche, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if grantDate.IsZero() {
		return nil, fmt.Errorf("schedule: grant date is required")
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("schedule: total must be positive, got %s", total)
	}

	standard, err := total.DivInt(int64(p.TermMonths))
	if err != nil {
		return nil, err
	}
	final := total.Sub(standard.MulInt(int64(p.TermMonths - 1)))
	if p.TermMonths > 1 && standard.IsZero() {
		return nil, fmt.Errorf("schedule: total %s too small to split over %d periods", total, p.TermMonths)
	}
	if !final.IsPositive() {
		return nil, fmt.Errorf("schedule: total %s leaves a non-positive final tranche over %d periods", total, p.TermMonths)
	}

	tranches := make([]Tranche, 0, p.TermMonths)
	for k := 1; k <= p.TermMonths; k++ {
		amount := standard
		if k == p.TermMonths {
			amount = final
		}
		tranches = append(tranches, Tranche{
			Period: k,
			Date:   grantDate.AddMonthsClamped(k),
			Amount: amount,
			Cliff:  k < p.CliffMonths,
		})
	}
	return tranches, nil
}

// Sum returns the exact sum of the tranche amounts.
func Sum(tranches []Tranche) fixed.Amount {
	total := fixed.Zero
	for _, tr := range tranches {
		total = total.Add(tr.Amount)
	}
	return total
}
