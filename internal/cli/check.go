package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rwaverify/internal/invariant"
	"github.com/roach88/rwaverify/internal/money"
)

// CheckOptions holds flags for the check subcommands.
type CheckOptions struct {
	*RootOptions
	Before string
	Amount string
	After  string
}

// CheckResult is the outcome of one invariant check.
type CheckResult struct {
	Check  invariant.Check `json:"check"`
	Before int64           `json:"before"`
	Amount int64           `json:"amount"`
	After  int64           `json:"after"`
	Held   bool            `json:"held"`
	Error  string          `json:"error,omitempty"`
}

func (r CheckResult) String() string {
	if r.Held {
		return fmt.Sprintf("✓ %s held: before=%d amount=%d after=%d", r.Check, r.Before, r.Amount, r.After)
	}
	return "✗ " + r.Error
}

// NewCheckCommand creates the check command with one subcommand per
// invariant.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate a balance invariant",
		Long: `Evaluate a balance invariant on balances read from the UI.

Balances and amounts may be plain integers or display strings such as
"$5,000.00".

Exit codes:
  0 - The invariant held
  1 - The invariant was violated
  2 - Command error (unparseable amount, etc.)

Examples:
  rwaverify check pay --before 5000 --amount 20 --after 4980
  rwaverify check receive --before '$5,000.00' --amount 40 --after '$5,040.00'
  rwaverify check unchanged --before 5000 --after 8500`,
	}

	cmd.AddCommand(newCheckSubcommand(rootOpts, "pay", invariant.CheckAfterPaying, "the payer's balance dropped by the amount"))
	cmd.AddCommand(newCheckSubcommand(rootOpts, "receive", invariant.CheckAfterReceiving, "the payee's balance rose by the amount"))
	cmd.AddCommand(newCheckSubcommand(rootOpts, "unchanged", invariant.CheckUnchanged, "the balance did not move"))

	return cmd
}

func newCheckSubcommand(rootOpts *RootOptions, use string, check invariant.Check, short string) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           use,
		Short:         "Check " + short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, check)
		},
	}
	cmd.Flags().StringVar(&opts.Before, "before", "", "balance before the step")
	cmd.Flags().StringVar(&opts.After, "after", "", "balance after the step")
	_ = cmd.MarkFlagRequired("before")
	_ = cmd.MarkFlagRequired("after")
	if check != invariant.CheckUnchanged {
		cmd.Flags().StringVar(&opts.Amount, "amount", "", "transaction amount")
		_ = cmd.MarkFlagRequired("amount")
	}
	return cmd
}

func runCheck(cmd *cobra.Command, opts *CheckOptions, check invariant.Check) error {
	out := opts.formatter(cmd)

	values := map[string]string{"before": opts.Before, "after": opts.After}
	if check != invariant.CheckUnchanged {
		values["amount"] = opts.Amount
	}
	parsed := map[string]int64{}
	for _, name := range []string{"before", "amount", "after"} {
		raw, ok := values[name]
		if !ok {
			continue
		}
		n, err := money.ParseAmount(raw)
		if err != nil {
			return WrapExitError(ExitCommandError, "--"+name, err)
		}
		parsed[name] = n
	}

	result := CheckResult{Check: check, Before: parsed["before"], Amount: parsed["amount"], After: parsed["after"]}
	var err error
	switch check {
	case invariant.CheckAfterPaying:
		err = invariant.AfterPaying(result.Before, result.Amount, result.After)
	case invariant.CheckAfterReceiving:
		err = invariant.AfterReceiving(result.Before, result.Amount, result.After)
	default:
		err = invariant.Unchanged(result.Before, result.After)
	}
	result.Held = err == nil
	if err != nil {
		result.Error = err.Error()
	}

	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if err != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: CodeViolation, Message: err.Error()}
		}
		if jerr := out.JSON(resp); jerr != nil {
			return jerr
		}
	} else if perr := out.Success(result); perr != nil {
		return perr
	}

	if err != nil {
		return WrapExitError(ExitFailure, "invariant violated", err)
	}
	return nil
}
