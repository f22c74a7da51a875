package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// AssertGolden compares a run's trace and report against the scenario's
// golden file. The trace carries only deterministic fields, so a diff means
// behavior changed, not ids or timestamps.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) {
	t.Helper()

	traceJSON, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	traceJSON = append(traceJSON, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)
}
