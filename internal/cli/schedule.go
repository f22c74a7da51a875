package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grantline/vestd/internal/date"
	"github.com/grantline/vestd/internal/fixed"
	"github.com/grantline/vestd/internal/plan"
	"github.com/grantline/vestd/internal/schedule"
)

// ScheduleOptions holds flags for the schedule command.
type ScheduleOptions struct {
	*RootOptions
	GrantDate string
	Total     string
	PlansDir  string
	PlanName  string
}

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScheduleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print a grant's vesting schedule without touching any database",
		Long: `Compute and print the deterministic vesting schedule for a hypothetical
grant. Generation is pure: the same grant date, total, and plan always
produce the same schedule, so this is useful for eyeballing terms before
onboarding a grant.

Example:
  vestd schedule --grant-date 2024-01-15 --total 1000
  vestd schedule --grant-date 2024-01-31 --total 4800 --plans ./plans --plan no_cliff`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.GrantDate, "grant-date", "", "grant date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&opts.Total, "total", "", "total share quantity, up to 3 decimals (required)")
	cmd.Flags().StringVar(&opts.PlansDir, "plans", "", "directory of CUE plan definitions")
	cmd.Flags().StringVar(&opts.PlanName, "plan", "standard", "plan to apply")
	_ = cmd.MarkFlagRequired("grant-date")
	_ = cmd.MarkFlagRequired("total")

	return cmd
}

func runSchedule(opts *ScheduleOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	grantDate, err := date.Parse(opts.GrantDate)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --grant-date", err)
	}
	total, err := fixed.Parse(opts.Total)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --total", err)
	}
	p, err := resolvePlan(opts.PlansDir, opts.PlanName)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolving plan", err)
	}

	tranches, err := schedule.Generate(grantDate, total, p)
	if err != nil {
		return WrapExitError(ExitFailure, "schedule generation failed", err)
	}

	return outputSchedule(formatter, p, tranches)
}

func outputSchedule(f *OutputFormatter, p plan.Plan, tranches []schedule.Tranche) error {
	if f.Format == "json" {
		return f.Success(map[string]interface{}{
			"plan":     p.Name,
			"tranches": tranches,
			"total":    schedule.Sum(tranches),
		})
	}

	for _, tr := range tranches {
		marker := ""
		if tr.Cliff {
			marker = "  cliff"
		}
		fmt.Fprintf(f.Writer, "%2d  %s  %10s%s\n", tr.Period, tr.Date, tr.Amount, marker)
	}
	fmt.Fprintf(f.Writer, "total %s over %d period(s)\n", schedule.Sum(tranches), len(tranches))
	return nil
}
