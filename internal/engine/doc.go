// Package engine materializes vesting schedules into the ledger and
// repairs historical corruption.
//
// The engine has two entry points with deliberately different write
// disciplines:
//
//   - Materialize brings one grant's events up to date with its schedule.
//     Each due tranche commits in its own transaction conditioned on the
//     grant's version (optimistic concurrency); a conflict aborts the rest
//     of the pass but leaves committed tranches in place, because every
//     tranche is independently idempotent.
//
//   - RepairDuplicates collapses duplicate (grant, vest date) events and
//     recomputes running totals from first principles, one transaction per
//     grant, isolating per-grant failures so one corrupt grant cannot block
//     the batch.
//
// The engine assumes callers never process the same grant concurrently
// from multiple workers; the version check is the only guard it carries.
package engine
