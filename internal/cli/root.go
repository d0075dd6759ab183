package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rwaverify/internal/browser"
	"github.com/roach88/rwaverify/internal/browser/cdp"
	"github.com/roach88/rwaverify/internal/config"
)

// LaunchFunc starts the browser scenarios drive.
type LaunchFunc func(ctx context.Context, cfg config.Config, remoteURL string, logger *slog.Logger) (browser.Browser, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Env        string
	ConfigPath string

	// Getenv, Launch and Now reach outside the process. Nil uses
	// os.Getenv, Chrome over CDP and time.Now.
	Getenv func(string) string
	Launch LaunchFunc
	Now    func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rwaverify CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rwaverify",
		Short: "Multi-actor end-to-end verification for the Real World App",
		Long: `Drive the Real World App with several isolated actors at once and
check every balance movement against the payment invariants.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Env, "env", "", "environment name (default $"+config.EnvSelector+", then the file default)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default built-in environments)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewDeviationsCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) getenv(key string) string {
	if o.Getenv != nil {
		return o.Getenv(key)
	}
	return os.Getenv(key)
}

func (o *RootOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// loadConfig resolves the selected environment. Any failure is a command
// error.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{Path: o.ConfigPath, Env: o.Env, Getenv: o.getenv})
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "load config", err)
	}
	return cfg, nil
}

// logger writes to the command's error stream: debug and up when verbose,
// warnings and up otherwise.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func (o *RootOptions) launch(ctx context.Context, cfg config.Config, remoteURL string, logger *slog.Logger) (browser.Browser, error) {
	if o.Launch != nil {
		return o.Launch(ctx, cfg, remoteURL, logger)
	}
	return launchChrome(ctx, cfg, remoteURL, logger)
}

func launchChrome(ctx context.Context, cfg config.Config, remoteURL string, logger *slog.Logger) (browser.Browser, error) {
	b, err := cdp.Launch(ctx, cdp.Config{
		RemoteURL: remoteURL,
		Headless:  cfg.Runner.Headless,
		Width:     cfg.Runner.Viewport.Width,
		Height:    cfg.Runner.Viewport.Height,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}
