package harness

import (
	"context"
	"fmt"

	"github.com/grantline/vestd/internal/store"
)

// EvaluateAssertions checks every assertion against the final ledger state
// and the run's recorded reports, returning one message per failure.
func EvaluateAssertions(ctx context.Context, st *store.Store, result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if msg := evaluateAssertion(ctx, st, result, &a); msg != "" {
			failures = append(failures, fmt.Sprintf("assertions[%d] (%s): %s", i, a.Type, msg))
		}
	}
	return failures
}

func evaluateAssertion(ctx context.Context, st *store.Store, result *Result, a *Assertion) string {
	switch a.Type {
	case AssertEventCount:
		events, err := st.ListGrantEvents(ctx, a.Grant)
		if err != nil {
			return err.Error()
		}
		if len(events) != a.Count {
			return fmt.Sprintf("grant %s has %d event(s), want %d", a.Grant, len(events), a.Count)
		}

	case AssertEventDates:
		events, err := st.ListGrantEvents(ctx, a.Grant)
		if err != nil {
			return err.Error()
		}
		if len(events) != len(a.Dates) {
			return fmt.Sprintf("grant %s has %d event(s), want %d", a.Grant, len(events), len(a.Dates))
		}
		for i, ev := range events {
			if ev.VestDate.String() != a.Dates[i] {
				return fmt.Sprintf("grant %s event %d is %s, want %s", a.Grant, i, ev.VestDate, a.Dates[i])
			}
		}

	case AssertVestedAmount:
		g, err := st.GetGrant(ctx, a.Grant)
		if err != nil {
			return err.Error()
		}
		if g.Vested.String() != a.Amount {
			return fmt.Sprintf("grant %s vested %s, want %s", a.Grant, g.Vested, a.Amount)
		}

	case AssertGrantVersion:
		g, err := st.GetGrant(ctx, a.Grant)
		if err != nil {
			return err.Error()
		}
		if g.Version != a.Version {
			return fmt.Sprintf("grant %s at version %d, want %d", a.Grant, g.Version, a.Version)
		}

	case AssertReport:
		if result.Report == nil {
			return "no repair step ran"
		}
		r := *result.Report
		if r.GroupsFixed != a.GroupsFixed || r.EventsDeleted != a.EventsDeleted ||
			r.GrantsUpdated != a.GrantsUpdated || r.GrantsFailed != a.GrantsFailed {
			return fmt.Sprintf("report %+v, want {GroupsFixed:%d EventsDeleted:%d GrantsUpdated:%d GrantsFailed:%d}",
				r, a.GroupsFixed, a.EventsDeleted, a.GrantsUpdated, a.GrantsFailed)
		}

	default:
		return fmt.Sprintf("unknown assertion type %q", a.Type)
	}
	return ""
}
