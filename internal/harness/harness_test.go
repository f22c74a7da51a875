package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios and pins each
// run's trace with its golden file.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no scenario files found")

	for _, path := range paths {
		path := path
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Passed, "scenario failed: %v", result.Errors)

			AssertGolden(t, scenario, result)
		})
	}
}

func TestRunRecordsAssertionFailures(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing",
		Description: "assertion mismatch is recorded, not fatal",
		Fixtures: Fixtures{Grants: []GrantFixture{
			{ID: "g-1", GrantDate: "2024-01-15", Total: "1000"},
		}},
		Steps: []Step{
			{Materialize: &MaterializeStep{AsOf: "2025-01-15"}},
		},
		Assertions: []Assertion{
			{Type: AssertEventCount, Grant: "g-1", Count: 99},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Passed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "12 event(s), want 99")
}

func TestRunUnexpectedErrorFailsScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing_grant",
		Description: "materializing an unknown grant is a step failure",
		Fixtures: Fixtures{Grants: []GrantFixture{
			{ID: "g-1", GrantDate: "2024-01-15", Total: "1000"},
		}},
		Steps: []Step{
			{Materialize: &MaterializeStep{Grant: "nope", AsOf: "2025-01-15"}},
		},
		Assertions: []Assertion{
			{Type: AssertEventCount, Grant: "g-1", Count: 0},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Passed)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "nope")

	require.Len(t, result.Trace, 1)
	assert.Equal(t, "GRANT_NOT_FOUND", result.Trace[0].Error)
}

func TestRunShortCliffPlan(t *testing.T) {
	scenario := &Scenario{
		Name:        "short_cliff",
		Description: "scenario-level plan overrides the standard terms",
		Plan:        &PlanSpec{Name: "quarterly", TermMonths: 24, CliffMonths: 3},
		Fixtures: Fixtures{Grants: []GrantFixture{
			{ID: "g-1", GrantDate: "2024-01-15", Total: "240"},
		}},
		Steps: []Step{
			{Materialize: &MaterializeStep{AsOf: "2024-03-15"}},
			{Materialize: &MaterializeStep{AsOf: "2024-04-15"}},
		},
		Assertions: []Assertion{
			{Type: AssertEventCount, Grant: "g-1", Count: 3},
			{Type: AssertVestedAmount, Grant: "g-1", Amount: "30.000"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Passed, "scenario failed: %v", result.Errors)
	assert.Equal(t, 0, result.Trace[0].Created, "inside the cliff nothing vests")
	assert.Equal(t, 3, result.Trace[1].Created)
}
