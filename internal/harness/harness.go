// Package harness runs YAML-defined ledger scenarios end to end.
//
// A scenario seeds a fresh in-memory database, drives the real materializer
// and reconciler through an ordered list of steps (including deliberate
// corruption staged the way a pre-migration database could hold it), then
// checks assertions over the final ledger state. Traces carry only
// deterministic fields, so runs can also be pinned with golden files.
package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/grantline/vestd/internal/date"
	"github.com/grantline/vestd/internal/engine"
	"github.com/grantline/vestd/internal/fixed"
	"github.com/grantline/vestd/internal/plan"
	"github.com/grantline/vestd/internal/store"
)

// corruptionBase is the fixed created_at for staged duplicate events.
// Copies are spaced one second apart so "earliest survives" is decidable.
var corruptionBase = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness drives one scenario against a fresh store.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	grants []GrantFixture
}

// Run executes a scenario in a fresh in-memory database and returns the
// result. Step failures and assertion failures land in the result; an error
// return means the scenario itself could not be staged.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}
	defer st.Close()

	p := plan.Standard()
	if scenario.Plan != nil {
		p = plan.Plan{
			Name:        scenario.Plan.Name,
			TermMonths:  scenario.Plan.TermMonths,
			CliffMonths: scenario.Plan.CliffMonths,
		}
		if p.Name == "" {
			p.Name = "scenario"
		}
	}

	h := &Harness{
		store:  st,
		engine: engine.New(st, p),
		grants: scenario.Fixtures.Grants,
	}

	ctx := context.Background()
	if err := h.seed(ctx, scenario.Fixtures); err != nil {
		return nil, fmt.Errorf("seed fixtures: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		switch {
		case step.Materialize != nil:
			h.runMaterialize(ctx, i, step.Materialize, result)
		case step.Corrupt != nil:
			if err := h.runCorrupt(ctx, i, step.Corrupt, result); err != nil {
				return nil, err
			}
		case step.Repair != nil:
			h.runRepair(ctx, i, result)
		}
	}

	for _, msg := range EvaluateAssertions(ctx, h.store, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// seed inserts the implicit tenant and employee, then the scenario's grants
// and price history.
func (h *Harness) seed(ctx context.Context, fixtures Fixtures) error {
	tenantID := uuid.Must(uuid.NewV7()).String()
	employeeID := uuid.Must(uuid.NewV7()).String()
	if err := h.store.InsertTenant(ctx, store.Tenant{ID: tenantID, Name: "Scenario Tenant"}); err != nil {
		return err
	}
	if err := h.store.InsertEmployee(ctx, store.Employee{ID: employeeID, TenantID: tenantID, Name: "Scenario Employee"}); err != nil {
		return err
	}

	for _, g := range fixtures.Grants {
		grantDate, err := date.Parse(g.GrantDate)
		if err != nil {
			return fmt.Errorf("grant %s: %w", g.ID, err)
		}
		total, err := fixed.Parse(g.Total)
		if err != nil {
			return fmt.Errorf("grant %s: %w", g.ID, err)
		}
		err = h.store.InsertGrant(ctx, store.Grant{
			ID:         g.ID,
			TenantID:   tenantID,
			EmployeeID: employeeID,
			GrantDate:  grantDate,
			Total:      total,
		})
		if err != nil {
			return fmt.Errorf("grant %s: %w", g.ID, err)
		}
	}

	for i, pr := range fixtures.Prices {
		effective, err := date.Parse(pr.EffectiveDate)
		if err != nil {
			return fmt.Errorf("price %d: %w", i, err)
		}
		price, err := fixed.Parse(pr.Price)
		if err != nil {
			return fmt.Errorf("price %d: %w", i, err)
		}
		err = h.store.InsertPriceSnapshot(ctx, store.PriceSnapshot{
			TenantID:      tenantID,
			EffectiveDate: effective,
			Price:         price,
		})
		if err != nil {
			return fmt.Errorf("price %d: %w", i, err)
		}
	}
	return nil
}

// runMaterialize materializes one grant or every fixture grant in order.
func (h *Harness) runMaterialize(ctx context.Context, stepIndex int, step *MaterializeStep, result *Result) {
	asOf, err := date.Parse(step.AsOf)
	if err != nil {
		result.AddError(fmt.Sprintf("steps[%d]: %v", stepIndex, err))
		return
	}

	grantIDs := []string{step.Grant}
	if step.Grant == "" {
		grantIDs = grantIDs[:0]
		for _, g := range h.grants {
			grantIDs = append(grantIDs, g.ID)
		}
	}

	for _, grantID := range grantIDs {
		created, err := h.engine.Materialize(ctx, grantID, asOf)
		trace := TraceEvent{Step: stepIndex, Op: "materialize", Grant: grantID, Created: len(created)}
		if err != nil {
			trace.Error = errorCode(err)
			if step.ExpectError == "" || trace.Error != step.ExpectError {
				result.AddError(fmt.Sprintf("steps[%d]: materialize %s: %v", stepIndex, grantID, err))
			}
		} else if step.ExpectError != "" {
			result.AddError(fmt.Sprintf("steps[%d]: materialize %s: expected error %s, got none", stepIndex, grantID, step.ExpectError))
		}
		result.Trace = append(result.Trace, trace)
	}
}

// runCorrupt stages duplicate events and optional running-total drift.
func (h *Harness) runCorrupt(ctx context.Context, stepIndex int, step *CorruptStep, result *Result) error {
	g, err := h.store.GetGrant(ctx, step.Grant)
	if err != nil {
		return fmt.Errorf("steps[%d]: corrupt: %w", stepIndex, err)
	}
	vestDate, err := date.Parse(step.VestDate)
	if err != nil {
		return fmt.Errorf("steps[%d]: corrupt: %w", stepIndex, err)
	}
	shares, err := fixed.Parse(step.Shares)
	if err != nil {
		return fmt.Errorf("steps[%d]: corrupt: %w", stepIndex, err)
	}

	if err := h.store.DropUniqueEventIndex(ctx); err != nil {
		return fmt.Errorf("steps[%d]: corrupt: %w", stepIndex, err)
	}
	for i := 0; i < step.Copies; i++ {
		ev := store.VestingEvent{
			ID:        uuid.Must(uuid.NewV7()).String(),
			GrantID:   g.ID,
			TenantID:  g.TenantID,
			VestDate:  vestDate,
			Shares:    shares,
			CreatedAt: corruptionBase.Add(time.Duration(i) * time.Second),
		}
		if err := h.store.InsertRawEvent(ctx, ev); err != nil {
			return fmt.Errorf("steps[%d]: corrupt copy %d: %w", stepIndex, i, err)
		}
	}

	if step.SetVested != "" {
		vested, err := fixed.Parse(step.SetVested)
		if err != nil {
			return fmt.Errorf("steps[%d]: corrupt: %w", stepIndex, err)
		}
		_, err = h.store.DB().ExecContext(ctx,
			"UPDATE grants SET vested_amount = ? WHERE id = ?", vested, g.ID)
		if err != nil {
			return fmt.Errorf("steps[%d]: corrupt: %w", stepIndex, err)
		}
	}

	result.Trace = append(result.Trace, TraceEvent{
		Step: stepIndex, Op: "corrupt", Grant: g.ID, Copies: step.Copies,
	})
	return nil
}

// runRepair runs the reconciler and records its report.
func (h *Harness) runRepair(ctx context.Context, stepIndex int, result *Result) {
	report, err := h.engine.RepairDuplicates(ctx)
	trace := TraceEvent{Step: stepIndex, Op: "repair"}
	if err != nil {
		trace.Error = errorCode(err)
		result.AddError(fmt.Sprintf("steps[%d]: repair: %v", stepIndex, err))
	} else {
		result.Report = &report
	}
	result.Trace = append(result.Trace, trace)
}

// errorCode renders an engine error as its stable code, falling back to the
// message for everything else.
func errorCode(err error) string {
	var ee *engine.Error
	if errors.As(err, &ee) {
		return string(ee.Code)
	}
	return err.Error()
}
