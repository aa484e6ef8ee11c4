package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/bootcheck/internal/model"
)

// NewInstallCommand creates the "install" cobra command.
func NewInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the Python dependencies only",
		Long: `Run pip install against the dependency manifest, in force-reinstall mode
unless --no-force is given. pip's own output is streamed as-is.

Unlike the full run, a failing install is reported through the exit code.

Examples:
  bootcheck install
  bootcheck install -r deploy/requirements.txt --no-force`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd)
		},
	}
}

func runInstall(cmd *cobra.Command) error {
	r, _, err := newRunner(cmd, runConfig, logger, jsonOutput)
	if err != nil {
		return err
	}

	result := r.Install(cmd.Context())
	if jsonOutput {
		printJSON(cmd.OutOrStdout(), result)
	}
	if !result.Succeeded() {
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("dependency install from %s failed (exit code %d)", runConfig.Requirements, result.ExitCode))
	}
	return nil
}
