package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grantline/vestd/internal/plan"
)

// NewPlansCommand creates the plans command.
func NewPlansCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans <plans-dir>",
		Short: "Validate and list CUE plan definitions",
		Long: `Load every CUE plan definition from a directory, validate the terms, and
list them. A definition failing validation reports its source position.

Example:
  vestd plans ./plans`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlans(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runPlans(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	plans, err := plan.Load(dir)
	if err != nil {
		var ce *plan.CompileError
		if errors.As(err, &ce) {
			_ = formatter.Error(ErrCodePlans, ce.Error(), nil)
			return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", ErrCodePlans, ce.Error()))
		}
		_ = formatter.Error(ErrCodePlans, err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading plans", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(plans)
	}

	for _, p := range plans {
		fmt.Fprintf(formatter.Writer, "%-20s  term=%-3d  cliff=%d\n", p.Name, p.TermMonths, p.CliffMonths)
	}
	fmt.Fprintf(formatter.Writer, "%d plan(s) valid\n", len(plans))
	return nil
}
