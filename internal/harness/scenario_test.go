package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validScenario = `
name: sample
description: loads cleanly
fixtures:
  grants:
    - id: g-1
      grant_date: 2024-01-15
      total: "1000"
steps:
  - materialize: {as_of: 2025-01-15}
assertions:
  - type: event_count
    grant: g-1
    count: 12
`

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario(writeScenario(t, validScenario))
	require.NoError(t, err)
	assert.Equal(t, "sample", s.Name)
	require.Len(t, s.Steps, 1)
	require.NotNil(t, s.Steps[0].Materialize)
	assert.Equal(t, "2025-01-15", s.Steps[0].Materialize.AsOf)
}

func TestLoadScenario_RejectsUnknownFields(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, `
name: typo
description: assertion vs assertions
fixtures:
  grants:
    - id: g-1
      grant_date: 2024-01-15
      total: "1000"
steps:
  - materialize: {as_of: 2025-01-15}
assertion:
  - type: event_count
`))
	require.Error(t, err)
}

func TestLoadScenario_MissingName(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, `
description: nameless
fixtures:
  grants:
    - id: g-1
      grant_date: 2024-01-15
      total: "1000"
steps:
  - materialize: {as_of: 2025-01-15}
assertions:
  - type: event_count
    grant: g-1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestLoadScenario_StepMustBeExactlyOneOp(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, `
name: double_op
description: a step with two operations
fixtures:
  grants:
    - id: g-1
      grant_date: 2024-01-15
      total: "1000"
steps:
  - materialize: {as_of: 2025-01-15}
    repair: {}
assertions:
  - type: event_count
    grant: g-1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one")
}

func TestLoadScenario_CorruptRequiresFields(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, `
name: bad_corrupt
description: corrupt step without shares
fixtures:
  grants:
    - id: g-1
      grant_date: 2024-01-15
      total: "1000"
steps:
  - corrupt:
      grant: g-1
      vest_date: 2024-02-15
      copies: 2
assertions:
  - type: event_count
    grant: g-1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt")
}

func TestLoadScenario_UnknownAssertionType(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, `
name: bad_assert
description: unsupported assertion type
fixtures:
  grants:
    - id: g-1
      grant_date: 2024-01-15
      total: "1000"
steps:
  - materialize: {as_of: 2025-01-15}
assertions:
  - type: trace_contains
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown assertion type")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
