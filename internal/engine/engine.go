package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/grantline/vestd/internal/date"
	"github.com/grantline/vestd/internal/plan"
	"github.com/grantline/vestd/internal/schedule"
	"github.com/grantline/vestd/internal/store"
)

// Engine materializes vesting schedules against the ledger.
type Engine struct {
	store *store.Store
	plan  plan.Plan

	// hookAfterApply, when set, runs after each committed tranche with the
	// count of tranches applied so far in this pass. Test-only: lets tests
	// interleave a concurrent writer at a tranche boundary.
	hookAfterApply func(applied int)
}

// New creates an engine over the given store, applying the given plan's
// terms to every grant it materializes.
func New(st *store.Store, p plan.Plan) *Engine {
	return &Engine{store: st, plan: p}
}

// Plan returns the vesting plan the engine applies.
func (e *Engine) Plan() plan.Plan { return e.plan }

// Materialize brings a grant's persisted events up to date with its
// schedule as of the given date, respecting the cliff.
//
// A period is a candidate iff its date is on or before asOf, no event
// exists for that date, and it passes the cliff policy: cliff-restricted
// periods are withheld unless the grant is already past its cliff cutoff
// (grant date plus cliff months), in which case all past-due periods are
// released together in one pass. Candidates apply strictly in period
// order, one transaction each.
//
// On a version conflict the remaining candidates are abandoned and the
// events created so far are returned alongside the conflict error;
// committed tranches stay committed, and a re-run from a fresh read picks
// up whatever is still missing. Zero candidates is a successful no-op that
// leaves the grant untouched.
func (e *Engine) Materialize(ctx context.Context, grantID string, asOf date.Date) ([]store.VestingEvent, error) {
	g, err := e.store.GetGrant(ctx, grantID)
	if err != nil {
		if errors.Is(err, store.ErrGrantNotFound) {
			return nil, newNotFoundError(grantID, "grant missing or deleted", err)
		}
		return nil, err
	}
	if g.Status != store.StatusActive {
		return nil, newNotFoundError(grantID, fmt.Sprintf("grant is %s, not active", g.Status), nil)
	}

	// Recomputed every pass: generation is pure and deterministic, so the
	// schedule is never cached or persisted.
	tranches, err := schedule.Generate(g.GrantDate, g.Total, e.plan)
	if err != nil {
		return nil, err
	}

	existing, err := e.store.VestedDates(ctx, grantID)
	if err != nil {
		return nil, err
	}

	// Bypass: once the grant's age reaches the cliff length, back-dated
	// cliff periods are released together with everything else due.
	cliffCutoff := g.GrantDate.AddMonthsClamped(e.plan.CliffMonths)
	bypass := !asOf.Before(cliffCutoff)

	created := []store.VestingEvent{}
	for _, tr := range tranches {
		if tr.Date.After(asOf) {
			break // chronological order: nothing later is due either
		}
		if existing[tr.Date] {
			continue
		}
		if tr.Cliff && !bypass {
			continue
		}

		newVested := g.Vested.Add(tr.Amount)
		if newVested.GreaterThan(g.Total) {
			return created, &Error{
				Code:    ErrCodeLedgerDrift,
				Message: fmt.Sprintf("applying period %d would vest %s of %s; run repair", tr.Period, newVested, g.Total),
				GrantID: grantID,
			}
		}

		ev := store.VestingEvent{
			ID:        uuid.Must(uuid.NewV7()).String(),
			GrantID:   g.ID,
			TenantID:  g.TenantID,
			VestDate:  tr.Date,
			Shares:    tr.Amount,
			CreatedAt: time.Now(),
		}
		if pps, err := e.store.LatestPriceOn(ctx, g.TenantID, tr.Date); err == nil {
			ev.PPS = &pps
		} else if !errors.Is(err, store.ErrNoPrice) {
			return created, err
		}

		if err := e.store.ApplyTranche(ctx, ev, newVested, g.Version); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				// Abort the pass; prior tranches stay committed.
				return created, newConflictError(grantID, err)
			}
			if store.IsConstraintError(err) {
				return created, &Error{
					Code:    ErrCodeConstraint,
					Message: fmt.Sprintf("period %d rejected by storage constraint", tr.Period),
					GrantID: grantID,
					Err:     err,
				}
			}
			return created, err
		}

		slog.Debug("tranche materialized",
			"grant", g.ID,
			"period", tr.Period,
			"date", tr.Date.String(),
			"shares", tr.Amount.String(),
		)

		g.Version++
		g.Vested = newVested
		created = append(created, ev)

		if e.hookAfterApply != nil {
			e.hookAfterApply(len(created))
		}
	}

	return created, nil
}
