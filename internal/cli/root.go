// Package cli implements the cobra-based CLI for bootcheck.
//
// The root command runs the whole bootstrap-and-verify sequence when called
// without a subcommand. The install, report and verify subcommands each run
// one step, and are defined in their own files within this package. This
// file defines the root command, global flags and exit code handling.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mmr-tortoise/bootcheck/internal/config"
	"github.com/mmr-tortoise/bootcheck/internal/model"
)

// Global flag variables shared across all subcommands. They are bound to
// persistent flags on the root command.
var (
	// jsonOutput switches stdout to a single JSON document per run.
	jsonOutput bool

	// verbose forces debug level logging on stderr.
	verbose bool

	// flags holds the overrides of config values.
	flags globalFlags

	// runConfig is the effective configuration, resolved in
	// PersistentPreRunE.
	runConfig config.Config

	// logger is built in PersistentPreRunE and synced in PersistentPostRun.
	logger = zap.NewNop()
)

// version, commit, and date are set at build time via ldflags.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
//
// Without a subcommand it installs the dependencies, reports the matching
// packages and verifies the service port, exiting 0 when the port is
// listening and 1 when it is not.
func NewRootCommand() *cobra.Command {
	flags = globalFlags{}
	jsonOutput, verbose = false, false

	rootCmd := &cobra.Command{
		Use:   "bootcheck",
		Short: "Install Python dependencies and verify a service is listening",
		Long: `bootcheck bootstraps the Python dependencies of a web service and checks
that the service has started listening on its TCP port.

With no arguments it runs the full sequence with the defaults:

  pip install --force-reinstall -r requirements.txt
  pip list (showing streamlit, joblib and jieba packages)
  check that TCP port 8502 is in the listening state

Install and report failures are logged and never stop the run. The exit
code is 0 when the port is listening, 1 when it is not, and 2 for invalid
flags or configuration.

Examples:
  bootcheck
  bootcheck --port 8080 --wait 30s
  bootcheck --pip "python3 -m pip" -r deploy/requirements.txt
  bootcheck verify --json`,

		Args: cobra.NoArgs,

		// Errors and usage are printed by Execute, in text or JSON.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAll(cmd)
		},
	}

	// Bad flags exit 2 like a bad config file. Subcommands inherit this.
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return model.WrapCLIError(model.ExitInvalidConfig, "invalid flags", err)
	})

	flags.register(rootCmd)
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(NewInstallCommand())
	rootCmd.AddCommand(NewReportCommand())
	rootCmd.AddCommand(NewVerifyCommand())

	return rootCmd
}

// setup resolves the configuration and builds the logger.
func setup(cmd *cobra.Command) error {
	cfg, err := resolveConfig(cmd.Flags(), os.Getenv)
	if err != nil {
		return err
	}
	runConfig = cfg

	// Validate already accepted the name, so only its normal form matters.
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger, err = newLogger(level, verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Debug("configuration resolved",
		zap.String("config_file", flags.configPath),
		zap.String("requirements", cfg.Requirements),
		zap.Strings("pip", cfg.Pip),
		zap.Int("port", cfg.Port),
		zap.Duration("wait", cfg.Wait.Timeout.Std()),
		zap.Bool("docker", cfg.Docker))
	return nil
}

// Execute runs the root command and exits with the code the run produced.
// ctx is cancelled on SIGINT/SIGTERM by the caller.
//
// CLIErrors carry their own exit code; other errors exit 1. Errors already
// reported on the console (the "not listening" line) are not printed again.
func Execute(ctx context.Context, rootCmd *cobra.Command) {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		if !cliErr.Reported {
			printError(cliErr.Message, cliErr.Err)
		}
		os.Exit(int(cliErr.Code))
	}

	printError(err.Error(), nil)
	os.Exit(int(model.ExitGeneralError))
}

// printError writes an error to stderr as "Error: ..." or, with --json, as
// a JSON object.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	}
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(data))
}
