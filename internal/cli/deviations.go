package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rwaverify/internal/report"
)

// DeviationsOptions holds flags for the deviations command.
type DeviationsOptions struct {
	*RootOptions
	Ledger string
	Since  time.Duration
}

// NewDeviationsCommand creates the deviations command.
func NewDeviationsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeviationsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deviations",
		Short: "List recorded known-deviation findings",
		Long: `List the known deviations recorded in a run ledger, oldest first.

A deviation is a balance movement that broke an invariant in exactly the
way a catalogued application bug does. The list shows whether a bug is
still reproducing across runs.

Examples:
  rwaverify deviations --ledger runs.db
  rwaverify deviations --ledger runs.db --since 168h --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listDeviations(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "SQLite ledger written by run --ledger (required)")
	cmd.Flags().DurationVar(&opts.Since, "since", 0, "only runs started within this duration (default all)")
	_ = cmd.MarkFlagRequired("ledger")

	return cmd
}

func listDeviations(cmd *cobra.Command, opts *DeviationsOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := os.Stat(opts.Ledger); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("ledger not found: %s", opts.Ledger))
	}
	ledger, err := report.Open(opts.Ledger)
	if err != nil {
		return WrapExitError(ExitCommandError, "open ledger", err)
	}
	defer ledger.Close()

	var since time.Time
	if opts.Since > 0 {
		since = opts.now().Add(-opts.Since)
	}
	records, err := ledger.Deviations(ctx, since)
	if err != nil {
		return WrapExitError(ExitCommandError, "read deviations", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(records)
	}
	w := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(w, "No deviations recorded.")
		return nil
	}
	for _, d := range records {
		fmt.Fprintf(w, "%s  %s  %s  %s at %s: %s before=%d after=%d\n",
			d.StartedAt.Format(time.RFC3339), d.RunID, d.Scenario,
			d.Finding.Actor, d.Finding.Step, d.Finding.DeviationID,
			d.Finding.Before, d.Finding.After)
	}
	fmt.Fprintf(w, "\n%d deviation(s)\n", len(records))
	return nil
}
