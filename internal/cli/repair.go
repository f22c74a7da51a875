package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grantline/vestd/internal/engine"
	"github.com/grantline/vestd/internal/plan"
	"github.com/grantline/vestd/internal/store"
)

// RepairOptions holds flags for the repair command.
type RepairOptions struct {
	*RootOptions
	Database string
}

// NewRepairCommand creates the repair command.
func NewRepairCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RepairOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Collapse duplicate vesting events and recompute totals",
		Long: `Scan the ledger for duplicate (grant, vest date) event groups, keep the
earliest event of each group, delete the rest, and recompute every affected
grant's vested total from its surviving events.

Each grant repairs in its own transaction; one grant failing does not stop
the rest. Exit code 1 signals that at least one grant could not be repaired.

Example:
  vestd repair --db ./ledger.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepair(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRepair(opts *RepairOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
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

	// Repair never consults plan terms; the standard plan is a placeholder.
	eng := engine.New(st, plan.Standard())
	report, err := eng.RepairDuplicates(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "repair scan failed", err)
	}

	if err := outputRepairReport(formatter, report); err != nil {
		return err
	}
	if report.GrantsFailed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("repair failed for %d grant(s)", report.GrantsFailed))
	}
	return nil
}

func outputRepairReport(f *OutputFormatter, report engine.Report) error {
	if f.Format == "json" {
		return f.Success(report)
	}

	if report.GroupsFixed == 0 && report.GrantsFailed == 0 {
		fmt.Fprintln(f.Writer, "ledger clean: no duplicate events found")
		return nil
	}
	fmt.Fprintf(f.Writer, "groups fixed:    %d\n", report.GroupsFixed)
	fmt.Fprintf(f.Writer, "events deleted:  %d\n", report.EventsDeleted)
	fmt.Fprintf(f.Writer, "grants updated:  %d\n", report.GrantsUpdated)
	fmt.Fprintf(f.Writer, "grants failed:   %d\n", report.GrantsFailed)
	return nil
}
