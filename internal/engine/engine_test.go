package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantline/vestd/internal/date"
	"github.com/grantline/vestd/internal/fixed"
	"github.com/grantline/vestd/internal/plan"
	"github.com/grantline/vestd/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seedGrant creates a tenant, employee, and active grant.
func seedGrant(t *testing.T, s *store.Store, grantDate, total string) store.Grant {
	t.Helper()
	ctx := context.Background()

	tenantID := uuid.Must(uuid.NewV7()).String()
	employeeID := uuid.Must(uuid.NewV7()).String()
	grantID := uuid.Must(uuid.NewV7()).String()

	require.NoError(t, s.InsertTenant(ctx, store.Tenant{ID: tenantID, Name: "Acme"}))
	require.NoError(t, s.InsertEmployee(ctx, store.Employee{ID: employeeID, TenantID: tenantID, Name: "Sam Doe"}))
	require.NoError(t, s.InsertGrant(ctx, store.Grant{
		ID:         grantID,
		TenantID:   tenantID,
		EmployeeID: employeeID,
		GrantDate:  date.MustParse(grantDate),
		Total:      fixed.MustParse(total),
	}))

	g, err := s.GetGrant(ctx, grantID)
	require.NoError(t, err)
	return g
}

func TestMaterialize_InsideCliffCreatesNothing(t *testing.T) {
	s := setupTestStore(t)
	eng := New(s, plan.Standard())
	ctx := context.Background()
	g := seedGrant(t, s, "2024-01-15", "1000")

	// 11 months old: periods 1-11 are due by date but all cliff-held.
	created, err := eng.Materialize(ctx, g.ID, date.MustParse("2024-12-15"))
	require.NoError(t, err)
	assert.Empty(t, created)

	got, err := s.GetGrant(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.000", got.Vested.String())
	assert.Equal(t, g.Version, got.Version, "no-op must not touch the grant")
}

func TestMaterialize_CliffBypassReleasesBackdatedPeriods(t *testing.T) {
	s := setupTestStore(t)
	eng := New(s, plan.Standard())
	ctx := context.Background()
	g := seedGrant(t, s, "2024-01-15", "1000")

	// Exactly 12 months old: the cliff has passed, so the 11 withheld
	// periods and period 12 all release in one pass.
	created, err := eng.Materialize(ctx, g.ID, date.MustParse("2025-01-15"))
	require.NoError(t, err)
	require.Len(t, created, 12)

	// Strictly chronological.
	for i := 1; i < len(created); i++ {
		assert.True(t, created[i-1].VestDate.Before(created[i].VestDate))
	}
	assert.Equal(t, "2024-02-15", created[0].VestDate.String())
	assert.Equal(t, "2025-01-15", created[11].VestDate.String())

	got, err := s.GetGrant(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "249.996", got.Vested.String()) // 12 x 20.833
	assert.Equal(t, g.Version+12, got.Version)
}

func TestMaterialize_RerunIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	eng := New(s, plan.Standard())
	ctx := context.Background()
	g := seedGrant(t, s, "2024-01-15", "1000")

	asOf := date.MustParse("2025-01-15")
	first, err := eng.Materialize(ctx, g.ID, asOf)
	require.NoError(t, err)
	require.Len(t, first, 12)

	afterFirst, err := s.GetGrant(ctx, g.ID)
	require.NoError(t, err)

	// Same as-of date again: zero candidates, grant untouched.
	second, err := eng.Materialize(ctx, g.ID, asOf)
	require.NoError(t, err)
	assert.Empty(t, second)

	afterSecond, err := s.GetGrant(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, afterFirst.Version, afterSecond.Version)
	assert.Equal(t, afterFirst.Vested.String(), afterSecond.Vested.String())
}

func TestMaterialize_IncrementalPasses(t *testing.T) {
	s := setupTestStore(t)
	eng := New(s, plan.Standard())
	ctx := context.Background()
	g := seedGrant(t, s, "2024-01-15", "1000")

	created, err := eng.Materialize(ctx, g.ID, date.MustParse("2025-01-15"))
	require.NoError(t, err)
	require.Len(t, created, 12)

	// Three months later: only the three new periods.
	created, err = eng.Materialize(ctx, g.ID, date.MustParse("2025-04-15"))
	require.NoError(t, err)
	require.Len(t, created, 3)
	assert.Equal(t, "2025-02-15", created[0].VestDate.String())
	assert.Equal(t, "2025-04-15", created[2].VestDate.String())
}

func TestMaterialize_FullTermSumsExactly(t *testing.T) {
	s := setupTestStore(t)
	eng := New(s, plan.Standard())
	ctx := context.Background()
	g := seedGrant(t, s, "2024-01-15", "1000")

	created, err := eng.Materialize(ctx, g.ID, date.MustParse("2028-01-15"))
	require.NoError(t, err)
	require.Len(t, created, 48)

	// 47 standard tranches plus the exact-remainder final tranche.
	assert.Equal(t, "20.833", created[0].Shares.String())
	assert.Equal(t, "20.849", created[47].Shares.String())

	got, err := s.GetGrant(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, got.Vested.Equal(got.Total), "fully materialized grant must vest its exact total")
	assert.Equal(t, "1000.000", got.Vested.String())
}

func TestMaterialize_PriceSnapshots(t *testing.T) {
	s := setupTestStore(t)
	eng := New(s, plan.Standard())
	ctx := context.Background()
	g := seedGrant(t, s, "2024-01-15", "1000")

	// History starts mid-schedule: early events store NULL, later events
	// take the most recent snapshot at or before their vest date.
	require.NoError(t, s.InsertPriceSnapshot(ctx, store.PriceSnapshot{
		TenantID: g.TenantID, EffectiveDate: date.MustParse("2024-06-01"), Price: fixed.MustParse("10.000"),
	}))
	require.NoError(t, s.InsertPriceSnapshot(ctx, store.PriceSnapshot{
		TenantID: g.TenantID, EffectiveDate: date.MustParse("2024-12-01"), Price: fixed.MustParse("14.250"),
	}))

	created, err := eng.Materialize(ctx, g.ID, date.MustParse("2025-01-15"))
	require.NoError(t, err)
	require.Len(t, created, 12)

	assert.Nil(t, created[0].PPS, "2024-02-15 predates all history")
	require.NotNil(t, created[4].PPS, "2024-06-15 follows the first snapshot")
	assert.Equal(t, "10.000", created[4].PPS.String())
	require.NotNil(t, created[11].PPS, "2025-01-15 follows the second snapshot")
	assert.Equal(t, "14.250", created[11].PPS.String())
}

func TestMaterialize_ConflictAbortsPassKeepsCommitted(t *testing.T) {
	s := setupTestStore(t)
	eng := New(s, plan.Standard())
	ctx := context.Background()
	g := seedGrant(t, s, "2024-01-15", "1000")

	// A concurrent writer bumps the version right after the first tranche
	// commits; the second conditional write must lose.
	eng.hookAfterApply = func(applied int) {
		if applied == 1 {
			_, err := s.DB().Exec("UPDATE grants SET version = version + 1 WHERE id = ?", g.ID)
			require.NoError(t, err)
		}
	}

	created, err := eng.Materialize(ctx, g.ID, date.MustParse("2025-01-15"))
	require.Error(t, err)
	assert.True(t, IsConflict(err), "want conflict, got %v", err)
	require.Len(t, created, 1, "first tranche stays committed")

	// Fresh pass picks up the rest without re-applying the first tranche.
	eng.hookAfterApply = nil
	created, err = eng.Materialize(ctx, g.ID, date.MustParse("2025-01-15"))
	require.NoError(t, err)
	assert.Len(t, created, 11)

	events, err := s.ListGrantEvents(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, events, 12, "no duplicate events after conflict recovery")

	got, err := s.GetGrant(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "249.996", got.Vested.String(), "no double-increment after conflict recovery")
}

func TestMaterialize_LedgerDriftGuard(t *testing.T) {
	s := setupTestStore(t)
	eng := New(s, plan.Standard())
	ctx := context.Background()
	g := seedGrant(t, s, "2024-01-15", "1000")

	// Corrupted running total near the cap: the next increment would
	// overshoot the grant total.
	_, err := s.DB().Exec("UPDATE grants SET vested_amount = '999.999' WHERE id = ?", g.ID)
	require.NoError(t, err)

	created, err := eng.Materialize(ctx, g.ID, date.MustParse("2025-01-15"))
	require.Error(t, err)
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrCodeLedgerDrift, ee.Code)
	assert.Empty(t, created)
}

func TestMaterialize_MissingGrant(t *testing.T) {
	s := setupTestStore(t)
	eng := New(s, plan.Standard())

	_, err := eng.Materialize(context.Background(), "nope", date.MustParse("2025-01-15"))
	assert.True(t, IsNotFound(err), "want not-found, got %v", err)
}

func TestMaterialize_InactiveGrantSkipped(t *testing.T) {
	s := setupTestStore(t)
	eng := New(s, plan.Standard())
	ctx := context.Background()
	g := seedGrant(t, s, "2024-01-15", "1000")

	require.NoError(t, s.SetGrantStatus(ctx, g.ID, store.StatusTerminated))

	_, err := eng.Materialize(ctx, g.ID, date.MustParse("2025-01-15"))
	assert.True(t, IsNotFound(err), "want not-found, got %v", err)
}

func TestMaterialize_SoftDeletedGrantSkipped(t *testing.T) {
	s := setupTestStore(t)
	eng := New(s, plan.Standard())
	ctx := context.Background()
	g := seedGrant(t, s, "2024-01-15", "1000")

	require.NoError(t, s.SoftDeleteGrant(ctx, g.ID))

	_, err := eng.Materialize(ctx, g.ID, date.MustParse("2025-01-15"))
	assert.True(t, IsNotFound(err), "want not-found, got %v", err)
}
