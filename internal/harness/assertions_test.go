package harness

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantline/vestd/internal/date"
	"github.com/grantline/vestd/internal/engine"
	"github.com/grantline/vestd/internal/fixed"
	"github.com/grantline/vestd/internal/plan"
	"github.com/grantline/vestd/internal/store"
)

// materializedStore returns a store with one fully cliff-released grant
// (12 events, 249.996 vested, version 13).
func materializedStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	tenantID := uuid.Must(uuid.NewV7()).String()
	employeeID := uuid.Must(uuid.NewV7()).String()
	grantID := "g-assert"
	require.NoError(t, s.InsertTenant(ctx, store.Tenant{ID: tenantID, Name: "Acme"}))
	require.NoError(t, s.InsertEmployee(ctx, store.Employee{ID: employeeID, TenantID: tenantID, Name: "Sam Doe"}))
	require.NoError(t, s.InsertGrant(ctx, store.Grant{
		ID:         grantID,
		TenantID:   tenantID,
		EmployeeID: employeeID,
		GrantDate:  date.MustParse("2024-01-15"),
		Total:      fixed.MustParse("1000"),
	}))

	_, err = engine.New(s, plan.Standard()).Materialize(ctx, grantID, date.MustParse("2025-01-15"))
	require.NoError(t, err)
	return s, grantID
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	s, grantID := materializedStore(t)
	result := NewResult()
	result.Report = &engine.Report{}

	failures := EvaluateAssertions(context.Background(), s, result, []Assertion{
		{Type: AssertEventCount, Grant: grantID, Count: 12},
		{Type: AssertVestedAmount, Grant: grantID, Amount: "249.996"},
		{Type: AssertGrantVersion, Grant: grantID, Version: 13},
		{Type: AssertReport},
	})
	assert.Empty(t, failures)
}

func TestEvaluateAssertions_EventDates(t *testing.T) {
	s, grantID := materializedStore(t)
	result := NewResult()

	failures := EvaluateAssertions(context.Background(), s, result, []Assertion{
		{Type: AssertEventDates, Grant: grantID, Dates: []string{
			"2024-02-15", "2024-03-15", "2024-04-15", "2024-05-15",
			"2024-06-15", "2024-07-15", "2024-08-15", "2024-09-15",
			"2024-10-15", "2024-11-15", "2024-12-15", "2025-01-15",
		}},
	})
	assert.Empty(t, failures)

	failures = EvaluateAssertions(context.Background(), s, result, []Assertion{
		{Type: AssertEventDates, Grant: grantID, Dates: []string{"2024-02-15"}},
	})
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "12 event(s), want 1")
}

func TestEvaluateAssertions_Mismatches(t *testing.T) {
	s, grantID := materializedStore(t)
	result := NewResult()

	failures := EvaluateAssertions(context.Background(), s, result, []Assertion{
		{Type: AssertEventCount, Grant: grantID, Count: 11},
		{Type: AssertVestedAmount, Grant: grantID, Amount: "999.999"},
		{Type: AssertGrantVersion, Grant: grantID, Version: 1},
	})
	require.Len(t, failures, 3)
	assert.Contains(t, failures[0], "want 11")
	assert.Contains(t, failures[1], "want 999.999")
	assert.Contains(t, failures[2], "want 1")
}

func TestEvaluateAssertions_ReportWithoutRepairStep(t *testing.T) {
	s, _ := materializedStore(t)
	result := NewResult()

	failures := EvaluateAssertions(context.Background(), s, result, []Assertion{
		{Type: AssertReport, GroupsFixed: 1},
	})
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "no repair step ran")
}

func TestEvaluateAssertions_UnknownGrant(t *testing.T) {
	s, _ := materializedStore(t)
	result := NewResult()

	failures := EvaluateAssertions(context.Background(), s, result, []Assertion{
		{Type: AssertVestedAmount, Grant: "absent", Amount: "0.000"},
	})
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "not found")
}
