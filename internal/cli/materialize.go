package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grantline/vestd/internal/date"
	"github.com/grantline/vestd/internal/engine"
	"github.com/grantline/vestd/internal/plan"
	"github.com/grantline/vestd/internal/store"
)

// MaterializeOptions holds flags for the materialize command.
type MaterializeOptions struct {
	*RootOptions
	Database string
	GrantID  string
	AsOf     string
	PlansDir string
	PlanName string
}

// GrantOutcome is one grant's result within a materialize run.
type GrantOutcome struct {
	GrantID string `json:"grant_id"`
	Created int    `json:"created"`
	Status  string `json:"status"` // "ok" | "conflict" | "error"
	Error   string `json:"error,omitempty"`
}

// MaterializeResult is the full result of a materialize run.
type MaterializeResult struct {
	AsOf         string         `json:"as_of"`
	Plan         string         `json:"plan"`
	Grants       []GrantOutcome `json:"grants"`
	TotalCreated int            `json:"total_created"`
	Conflicts    int            `json:"conflicts"`
	Errors       int            `json:"errors"`
}

// NewMaterializeCommand creates the materialize command.
func NewMaterializeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MaterializeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Materialize due vesting events into the ledger",
		Long: `Bring persisted vesting events up to date with each grant's schedule.

With --grant, materializes a single grant; otherwise every active grant in
the database. Re-running with the same as-of date is a no-op. A version
conflict on one grant abandons that grant's pass (committed tranches stay
committed) without blocking the others; re-run to pick up the remainder.

Example:
  vestd materialize --db ./ledger.db --as-of 2026-01-15
  vestd materialize --db ./ledger.db --grant 0194fe3a-... --plans ./plans --plan no_cliff`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMaterialize(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.GrantID, "grant", "", "materialize a single grant by id")
	cmd.Flags().StringVar(&opts.AsOf, "as-of", "", "materialize through this date (default today)")
	cmd.Flags().StringVar(&opts.PlansDir, "plans", "", "directory of CUE plan definitions")
	cmd.Flags().StringVar(&opts.PlanName, "plan", "standard", "plan to apply")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runMaterialize(opts *MaterializeOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	asOf := date.Today()
	if opts.AsOf != "" {
		var err error
		asOf, err = date.Parse(opts.AsOf)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --as-of date", err)
		}
	}

	p, err := resolvePlan(opts.PlansDir, opts.PlanName)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolving plan", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	eng := engine.New(st, p)

	grantIDs := []string{opts.GrantID}
	if opts.GrantID == "" {
		grantIDs, err = st.ListActiveGrantIDs(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "listing grants", err)
		}
	}

	result := MaterializeResult{AsOf: asOf.String(), Plan: p.Name, Grants: []GrantOutcome{}}
	for _, id := range grantIDs {
		created, err := eng.Materialize(ctx, id, asOf)
		outcome := GrantOutcome{GrantID: id, Created: len(created), Status: "ok"}
		switch {
		case err == nil:
		case engine.IsConflict(err):
			// Committed tranches stay; a re-run finishes the pass.
			outcome.Status = "conflict"
			outcome.Error = err.Error()
			result.Conflicts++
		default:
			outcome.Status = "error"
			outcome.Error = err.Error()
			result.Errors++
		}
		result.TotalCreated += outcome.Created
		result.Grants = append(result.Grants, outcome)
	}

	if err := outputMaterializeResult(formatter, result); err != nil {
		return err
	}
	if result.Errors > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("materialize failed for %d grant(s)", result.Errors))
	}
	return nil
}

// resolvePlan loads the named plan from a CUE directory, or falls back to
// the built-in standard plan when no directory is given.
func resolvePlan(dir, name string) (plan.Plan, error) {
	if dir == "" {
		if name != "" && name != plan.Standard().Name {
			return plan.Plan{}, errors.New("--plan requires --plans to name the plan directory")
		}
		return plan.Standard(), nil
	}
	plans, err := plan.Load(dir)
	if err != nil {
		return plan.Plan{}, err
	}
	return plan.Find(plans, name)
}

func outputMaterializeResult(f *OutputFormatter, result MaterializeResult) error {
	if f.Format == "json" {
		return f.Success(result)
	}

	for _, g := range result.Grants {
		switch g.Status {
		case "ok":
			fmt.Fprintf(f.Writer, "%s  created=%d\n", g.GrantID, g.Created)
		default:
			fmt.Fprintf(f.Writer, "%s  created=%d  %s: %s\n", g.GrantID, g.Created, g.Status, g.Error)
		}
	}
	fmt.Fprintf(f.Writer, "as-of %s: %d event(s) created across %d grant(s)",
		result.AsOf, result.TotalCreated, len(result.Grants))
	if result.Conflicts > 0 {
		fmt.Fprintf(f.Writer, ", %d conflict(s)", result.Conflicts)
	}
	if result.Errors > 0 {
		fmt.Fprintf(f.Writer, ", %d error(s)", result.Errors)
	}
	fmt.Fprintln(f.Writer)
	return nil
}
