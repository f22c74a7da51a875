package harness

import "github.com/grantline/vestd/internal/engine"

// Result collects everything a scenario run produced: a deterministic trace
// for golden comparison, the last repair report, and assertion failures.
type Result struct {
	// Passed is true when every step behaved as declared and every
	// assertion held.
	Passed bool `json:"passed"`

	// Errors holds step and assertion failure messages.
	Errors []string `json:"errors,omitempty"`

	// Trace is one entry per operation, in execution order. Entries carry
	// only deterministic fields (no ids, no wall-clock timestamps) so the
	// trace is stable across runs and suitable for golden files.
	Trace []TraceEvent `json:"trace"`

	// Report is the report of the last repair step, if any ran.
	Report *engine.Report `json:"report,omitempty"`
}

// TraceEvent is one operation in a scenario run.
type TraceEvent struct {
	Step    int    `json:"step"`
	Op      string `json:"op"` // "materialize" | "corrupt" | "repair"
	Grant   string `json:"grant,omitempty"`
	Created int    `json:"created,omitempty"`
	Copies  int    `json:"copies,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewResult returns an empty result that is passing until an error lands.
func NewResult() *Result {
	return &Result{Passed: true, Trace: []TraceEvent{}}
}

// AddError records a failure message and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Passed = false
}
