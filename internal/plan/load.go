package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// CompileError reports a problem in a plan definition, with the CUE source
// position when available.
type CompileError struct {
	Plan    string
	Field   string
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: plan %q: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Plan, e.Message)
	}
	return fmt.Sprintf("plan %q: %s", e.Plan, e.Message)
}

// Load reads all CUE plan definitions from a directory.
//
// Plan files declare plans under a top-level "plan" struct:
//
//	plan: standard: {term_months: 48, cliff_months: 12}
//	plan: no_cliff: {term_months: 24, cliff_months: 0}
//
// Plans are returned sorted by name for deterministic listings. An empty or
// missing "plan" struct is an error; so is any plan failing Validate.
func Load(dir string) ([]Plan, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("plan directory not found: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("accessing plan directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	files, err := findCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning plan directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances(files, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}

	plansVal := value.LookupPath(cue.ParsePath("plan"))
	if !plansVal.Exists() {
		return nil, fmt.Errorf("no \"plan\" definitions found in %s", dir)
	}

	iter, err := plansVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating plans: %w", err)
	}

	var plans []Plan
	for iter.Next() {
		p, err := compilePlan(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("no plans defined in %s", dir)
	}

	sort.Slice(plans, func(i, j int) bool { return plans[i].Name < plans[j].Name })
	return plans, nil
}

// Find returns the named plan from a loaded set.
func Find(plans []Plan, name string) (Plan, error) {
	for _, p := range plans {
		if p.Name == name {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("plan %q not defined", name)
}

// compilePlan extracts one plan from its CUE value.
func compilePlan(name string, v cue.Value) (Plan, error) {
	p := Plan{Name: name}

	term, err := intField(v, "term_months")
	if err != nil {
		return Plan{}, &CompileError{Plan: name, Field: "term_months", Message: err.Error(), Pos: v.Pos()}
	}
	p.TermMonths = term

	cliff, err := intField(v, "cliff_months")
	if err != nil {
		return Plan{}, &CompileError{Plan: name, Field: "cliff_months", Message: err.Error(), Pos: v.Pos()}
	}
	p.CliffMonths = cliff

	if err := p.Validate(); err != nil {
		return Plan{}, &CompileError{Plan: name, Message: err.Error(), Pos: v.Pos()}
	}
	return p, nil
}

// intField reads a required integer field from a CUE struct value.
func intField(v cue.Value, field string) (int, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, fmt.Errorf("missing required field %q", field)
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, fmt.Errorf("field %q must be an integer: %v", field, err)
	}
	return int(n), nil
}

// findCUEFiles walks the directory and returns all .cue file paths.
func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
