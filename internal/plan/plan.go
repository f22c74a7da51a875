// Package plan defines vesting plan terms and loads plan definitions from
// CUE files.
//
// A plan is the schedule-shaping half of a grant's terms: how many monthly
// periods the total vests over and how many of those periods sit behind the
// cliff. Grants reference a plan; the standard plan is 48 months with a
// 12-month cliff.
package plan

import "fmt"

// Plan describes the vesting terms applied to a grant.
type Plan struct {
	// Name identifies the plan (e.g. "standard").
	Name string `json:"name"`

	// TermMonths is the number of monthly vesting periods.
	TermMonths int `json:"term_months"`

	// CliffMonths is the length of the cliff in months. Periods whose
	// zero-based index is below CliffMonths-1 are cliff-restricted; the
	// period landing exactly on the cliff boundary vests with it.
	CliffMonths int `json:"cliff_months"`
}

// Standard returns the default plan: 48 monthly periods, 12-month cliff.
func Standard() Plan {
	return Plan{Name: "standard", TermMonths: 48, CliffMonths: 12}
}

// Validate checks the plan's structural invariants.
func (p Plan) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("plan: name is required")
	}
	if p.TermMonths < 1 {
		return fmt.Errorf("plan %q: term_months must be >= 1, got %d", p.Name, p.TermMonths)
	}
	if p.CliffMonths < 0 {
		return fmt.Errorf("plan %q: cliff_months must be >= 0, got %d", p.Name, p.CliffMonths)
	}
	if p.CliffMonths > p.TermMonths {
		return fmt.Errorf("plan %q: cliff_months %d exceeds term_months %d", p.Name, p.CliffMonths, p.TermMonths)
	}
	return nil
}
