package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a ledger conformance scenario: fixtures to seed, steps to
// run against a fresh database, and assertions over the resulting state.
type Scenario struct {
	// Name uniquely identifies this scenario. Doubles as the golden file
	// name for trace comparison.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Plan holds the vesting terms applied by materialize steps. Optional;
	// defaults to the standard 48/12 plan.
	Plan *PlanSpec `yaml:"plan,omitempty"`

	// Fixtures seed the database before the first step.
	Fixtures Fixtures `yaml:"fixtures"`

	// Steps run in order. Each step is exactly one operation.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final ledger state and the run's reports.
	Assertions []Assertion `yaml:"assertions"`
}

// PlanSpec is a plan definition inlined in a scenario.
type PlanSpec struct {
	Name        string `yaml:"name"`
	TermMonths  int    `yaml:"term_months"`
	CliffMonths int    `yaml:"cliff_months"`
}

// Fixtures describe the initial database contents. All grants share one
// implicit tenant and employee; scenarios exercise ledger behavior, not
// org structure.
type Fixtures struct {
	Grants []GrantFixture `yaml:"grants"`
	Prices []PriceFixture `yaml:"prices,omitempty"`
}

// GrantFixture seeds one active grant.
type GrantFixture struct {
	ID        string `yaml:"id"`
	GrantDate string `yaml:"grant_date"`
	Total     string `yaml:"total"`
}

// PriceFixture seeds one price history entry.
type PriceFixture struct {
	EffectiveDate string `yaml:"effective_date"`
	Price         string `yaml:"price"`
}

// Step is one operation in a scenario. Exactly one of the fields is set.
type Step struct {
	Materialize *MaterializeStep `yaml:"materialize,omitempty"`
	Corrupt     *CorruptStep     `yaml:"corrupt,omitempty"`
	Repair      *RepairStep      `yaml:"repair,omitempty"`
}

// MaterializeStep runs the materializer for one grant, or for every grant
// in the fixtures when Grant is empty.
type MaterializeStep struct {
	Grant string `yaml:"grant,omitempty"`
	AsOf  string `yaml:"as_of"`

	// ExpectError names the engine error code this step must fail with
	// (e.g. "LEDGER_DRIFT"). Empty means the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// CorruptStep stages duplicate events the way a pre-v1 database could,
// bypassing the engine entirely.
type CorruptStep struct {
	Grant    string `yaml:"grant"`
	VestDate string `yaml:"vest_date"`
	Shares   string `yaml:"shares"`
	Copies   int    `yaml:"copies"`

	// SetVested optionally overwrites the grant's stored running total,
	// simulating the drift the duplicates caused.
	SetVested string `yaml:"set_vested,omitempty"`
}

// RepairStep runs the reconciler over the whole ledger.
type RepairStep struct{}

// Assertion validates final state or a recorded report.
type Assertion struct {
	// Type selects the check:
	//   - "event_count": grant has exactly Count events
	//   - "event_dates": grant's events are exactly Dates, in order
	//   - "vested_amount": grant's stored total equals Amount
	//   - "grant_version": grant's version equals Version
	//   - "report": the last repair step produced these counts
	Type string `yaml:"type"`

	Grant   string   `yaml:"grant,omitempty"`
	Count   int      `yaml:"count,omitempty"`
	Dates   []string `yaml:"dates,omitempty"`
	Amount  string   `yaml:"amount,omitempty"`
	Version int64    `yaml:"version,omitempty"`

	GroupsFixed   int `yaml:"groups_fixed,omitempty"`
	EventsDeleted int `yaml:"events_deleted,omitempty"`
	GrantsUpdated int `yaml:"grants_updated,omitempty"`
	GrantsFailed  int `yaml:"grants_failed,omitempty"`
}

// Assertion type constants.
const (
	AssertEventCount   = "event_count"
	AssertEventDates   = "event_dates"
	AssertVestedAmount = "vested_amount"
	AssertGrantVersion = "grant_version"
	AssertReport       = "report"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly instead of silently skipping checks.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields before any database work starts.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Fixtures.Grants) == 0 {
		return fmt.Errorf("fixtures.grants must be non-empty")
	}
	for i, g := range s.Fixtures.Grants {
		if g.ID == "" || g.GrantDate == "" || g.Total == "" {
			return fmt.Errorf("fixtures.grants[%d]: id, grant_date, and total are required", i)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list must be non-empty")
	}
	for i, step := range s.Steps {
		set := 0
		if step.Materialize != nil {
			set++
			if step.Materialize.AsOf == "" {
				return fmt.Errorf("steps[%d].materialize: as_of is required", i)
			}
		}
		if step.Corrupt != nil {
			set++
			c := step.Corrupt
			if c.Grant == "" || c.VestDate == "" || c.Shares == "" {
				return fmt.Errorf("steps[%d].corrupt: grant, vest_date, and shares are required", i)
			}
			if c.Copies < 1 {
				return fmt.Errorf("steps[%d].corrupt: copies must be >= 1", i)
			}
		}
		if step.Repair != nil {
			set++
		}
		if set != 1 {
			return fmt.Errorf("steps[%d]: exactly one of materialize, corrupt, repair must be set", i)
		}
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list must be non-empty")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertEventCount, AssertGrantVersion:
		if a.Grant == "" {
			return fmt.Errorf("assertions[%d]: grant is required for %s", index, a.Type)
		}
	case AssertEventDates:
		if a.Grant == "" || len(a.Dates) == 0 {
			return fmt.Errorf("assertions[%d]: grant and dates are required for event_dates", index)
		}
	case AssertVestedAmount:
		if a.Grant == "" || a.Amount == "" {
			return fmt.Errorf("assertions[%d]: grant and amount are required for vested_amount", index)
		}
	case AssertReport:
		// All counts default to zero; nothing further to require.
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
