package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/rwaverify/internal/browser"
	"github.com/roach88/rwaverify/internal/config"
	"github.com/roach88/rwaverify/internal/harness"
	"github.com/roach88/rwaverify/internal/invariant"
	"github.com/roach88/rwaverify/internal/metrics"
	"github.com/roach88/rwaverify/internal/report"
	"github.com/roach88/rwaverify/internal/seed"
	"github.com/roach88/rwaverify/internal/tracing"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Filter      string // scenario name glob
	Workers     int    // overrides the config when > 0
	Mode        string // overrides the config when set
	Ledger      string // SQLite ledger path; empty records nothing
	MetricsFile string // Prometheus textfile; empty writes nothing
	RemoteURL   string // DevTools endpoint of a running Chrome
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name       string              `json:"name"`
	RunID      string              `json:"run_id,omitempty"`
	Pass       bool                `json:"pass"`
	Errors     []string            `json:"errors,omitempty"`
	Deviations []invariant.Finding `json:"deviations,omitempty"`
}

// RunResult holds the overall result of a run.
type RunResult struct {
	Environment string           `json:"environment"`
	Mode        invariant.Mode   `json:"mode"`
	Scenarios   []ScenarioResult `json:"scenarios"`
	Passed      int              `json:"passed"`
	Failed      int              `json:"failed"`
	Total       int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenarios-dir>",
		Short: "Run scenarios against an environment",
		Long: `Run every scenario in a directory against the selected environment.

Each scenario seeds its own actors and drives one isolated browser
context per actor; up to --workers scenarios run at once.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (bad config, missing directory, no browser, etc.)

Examples:
  rwaverify run ./scenarios
  rwaverify run ./scenarios --env dev --filter "request_*"
  rwaverify run ./scenarios --mode strict --ledger runs.db
  rwaverify run ./scenarios --metrics-file rwaverify.prom --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by name glob")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "scenarios run at once (default from config)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "deviation mode: tracked or strict (default from config)")
	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "record runs in this SQLite ledger")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	cmd.Flags().StringVar(&opts.RemoteURL, "remote", "", "DevTools URL of a running Chrome")

	return cmd
}

func runScenarios(cmd *cobra.Command, opts *RunOptions, dir string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	scenarios, err := selectScenarios(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "load scenarios", err)
	}
	if len(scenarios) == 0 {
		if opts.Format == "json" {
			return out.Success(RunResult{Environment: cfg.Name, Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	modeName := cfg.Runner.DeviationMode
	if opts.Mode != "" {
		modeName = opts.Mode
	}
	mode, err := invariant.ParseMode(modeName)
	if err != nil {
		return WrapExitError(ExitCommandError, "deviation mode", err)
	}
	workers := cfg.Runner.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}

	var ledger *report.Ledger
	if opts.Ledger != "" {
		ledger, err = report.Open(opts.Ledger)
		if err != nil {
			return WrapExitError(ExitCommandError, "open ledger", err)
		}
		defer ledger.Close()
	}

	logger := opts.logger(cmd).With("env", cfg.Name)
	registry := prometheus.NewRegistry()
	rec := metrics.New(metrics.Config{Namespace: "rwaverify", Registry: registry})

	gw := newGateway(cfg, uint64(opts.now().UnixNano()), logger, rec)
	if err := preflight(ctx, cfg, gw); err != nil {
		return err
	}

	out.VerboseLog("Launching browser for %s (%s)", cfg.Name, cfg.BaseURL)
	b, err := opts.launch(ctx, cfg, opts.RemoteURL, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "launch browser", err)
	}
	defer b.Close()

	env := harness.Env{
		Browser: b,
		BaseURL: cfg.BaseURL,
		Seeder:  gw,
		UI:      uiOptions(cfg),
		Mode:    mode,
		Timeout: cfg.Runner.ScenarioTimeout,
		Logger:  logger,
		Tracer:  tracing.NewOTelTracer(tracing.DefaultConfig()),
		Metrics: rec,
	}

	w := cmd.OutOrStdout()
	suite := harness.RunSuite(ctx, env, scenarios, workers, func(e harness.SuiteEntry) {
		if opts.Format != "json" {
			printEntry(w, e)
		}
		if ledger != nil && e.Result != nil {
			if err := ledger.RecordRun(context.Background(), report.FromResult(e.Result, e.StartedAt, e.Duration)); err != nil {
				logger.Error("recording run", "scenario", e.Scenario.Name, "error", err)
			}
		}
	})

	if opts.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, registry); err != nil {
			return WrapExitError(ExitCommandError, "write metrics", err)
		}
	}

	result := RunResult{
		Environment: cfg.Name,
		Mode:        mode,
		Scenarios:   make([]ScenarioResult, 0, suite.Total),
		Passed:      suite.Passed,
		Failed:      suite.Failed,
		Total:       suite.Total,
	}
	for _, e := range suite.Entries {
		result.Scenarios = append(result.Scenarios, scenarioResult(e))
	}

	if opts.Format == "json" {
		return outputRunJSON(out, result)
	}
	return outputRunText(w, result)
}

// selectScenarios loads dir and keeps the scenarios whose name matches
// filter.
func selectScenarios(dir, filter string) ([]*harness.Scenario, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.y*ml"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	all, err := harness.LoadScenarios(dir)
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return all, nil
	}
	var out []*harness.Scenario
	for _, s := range all {
		ok, err := filepath.Match(filter, s.Name)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func newGateway(cfg config.Config, seedValue uint64, logger *slog.Logger, rec metrics.Recorder) *seed.Gateway {
	client := resty.New().SetTimeout(cfg.Runner.ActionTimeout)
	return seed.NewGateway(seed.Options{
		APIURL:     cfg.APIURL,
		Timeout:    cfg.Runner.ActionTimeout,
		Identities: seed.NewRandomUserSource(client, cfg.IdentityURL),
		Seed:       seedValue,
		Logger:     logger,
		Metrics:    rec,
	})
}

// preflight signs in as the environment's administrator. Failure is a
// command error.
func preflight(ctx context.Context, cfg config.Config, gw *seed.Gateway) error {
	admin := seed.Account{
		Username:  cfg.Admin.Username,
		Password:  cfg.Admin.Password,
		FirstName: cfg.Admin.FirstName,
		LastName:  cfg.Admin.LastName,
	}
	if err := gw.Preflight(ctx, admin); err != nil {
		return WrapExitError(ExitCommandError, "preflight "+cfg.Name, err)
	}
	return nil
}

func uiOptions(cfg config.Config) browser.Options {
	expect := browser.DefaultPoller()
	expect.Timeout = cfg.Runner.ExpectTimeout
	return browser.Options{ActionTimeout: cfg.Runner.ActionTimeout, Expect: expect}
}

func scenarioResult(e harness.SuiteEntry) ScenarioResult {
	r := ScenarioResult{Name: e.Scenario.Name, Pass: e.Pass()}
	if e.Err != nil {
		r.Errors = []string{fmt.Sprintf("execution failed: %v", e.Err)}
		return r
	}
	r.RunID = e.Result.RunID
	if len(e.Result.Errors) > 0 {
		r.Errors = e.Result.Errors
	}
	r.Deviations = e.Result.Deviations()
	return r
}

func printEntry(w io.Writer, e harness.SuiteEntry) {
	r := scenarioResult(e)
	if r.Pass {
		fmt.Fprintf(w, "✓ %s\n", r.Name)
	} else {
		fmt.Fprintf(w, "✗ %s\n", r.Name)
	}
	for _, msg := range r.Errors {
		fmt.Fprintf(w, "  %s\n", msg)
	}
	for _, d := range r.Deviations {
		fmt.Fprintf(w, "  known deviation %s: %s at %s before=%d after=%d\n",
			d.DeviationID, d.Actor, d.Step, d.Before, d.After)
	}
}

func outputRunJSON(out *OutputFormatter, result RunResult) error {
	resp := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    CodeRunFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}
	if err := out.JSON(resp); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func outputRunText(w io.Writer, result RunResult) error {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run Summary (%s, %s): %d passed, %d failed, %d total\n",
		result.Environment, result.Mode, result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
