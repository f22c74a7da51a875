package engine

import (
	"context"
	"log/slog"
	"sort"
)

// Report summarizes one repair run. Batch operations report per-grant
// outcomes instead of failing the run on the first error.
type Report struct {
	// GroupsFixed is the number of (grant, vest date) duplicate groups
	// collapsed to a single event.
	GroupsFixed int `json:"groups_fixed"`

	// EventsDeleted is the number of duplicate events removed.
	EventsDeleted int `json:"events_deleted"`

	// GrantsUpdated is the number of grants whose running total was
	// recomputed.
	GrantsUpdated int `json:"grants_updated"`

	// GrantsFailed is the number of grants whose repair failed and was
	// skipped. Failures are logged, never fatal to the batch.
	GrantsFailed int `json:"grants_failed"`
}

// RepairDuplicates restores the one-event-per-(grant, vest date) invariant
// and the exact-sum invariant across the whole ledger.
//
// Each affected grant repairs in its own transaction: duplicate groups
// collapse to their earliest-created event and the grant's vested amount is
// recomputed as the sum over surviving events, discarding whatever the
// possibly-corrupted running total held. A failure repairing one grant is
// logged and counted; the remaining grants still repair.
func (e *Engine) RepairDuplicates(ctx context.Context) (Report, error) {
	var report Report

	groups, err := e.store.FindDuplicateGroups(ctx)
	if err != nil {
		return report, err
	}
	if len(groups) == 0 {
		return report, nil
	}

	// One repair transaction per grant, in deterministic order.
	seen := make(map[string]bool)
	grantIDs := []string{}
	for _, g := range groups {
		if !seen[g.GrantID] {
			seen[g.GrantID] = true
			grantIDs = append(grantIDs, g.GrantID)
		}
	}
	sort.Strings(grantIDs)

	for _, grantID := range grantIDs {
		groupsFixed, eventsDeleted, err := e.store.RepairGrant(ctx, grantID)
		if err != nil {
			slog.Error("grant repair failed", "grant", grantID, "error", err)
			report.GrantsFailed++
			continue
		}
		slog.Info("grant repaired",
			"grant", grantID,
			"groups_fixed", groupsFixed,
			"events_deleted", eventsDeleted,
		)
		report.GroupsFixed += groupsFixed
		report.EventsDeleted += eventsDeleted
		report.GrantsUpdated++
	}

	return report, nil
}
