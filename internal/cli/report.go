package cli

import (
	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/bootcheck/internal/model"
)

// NewReportCommand creates the "report" cobra command.
func NewReportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "List installed packages matching the report patterns",
		Long: `List installed Python packages whose name contains one of the report
patterns (case-insensitive). The default patterns are streamlit, joblib
and jieba.

Examples:
  bootcheck report
  bootcheck report --pattern numpy --pattern pandas
  bootcheck report --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd)
		},
	}
}

func runReport(cmd *cobra.Command) error {
	r, _, err := newRunner(cmd, runConfig, logger, jsonOutput)
	if err != nil {
		return err
	}

	// Run the reporter directly so a failing pip list surfaces as an error.
	pkgs, err := r.Reporter.Report(cmd.Context(), runConfig.Patterns)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "package report failed", err)
	}
	if jsonOutput {
		printJSON(cmd.OutOrStdout(), struct {
			Packages []model.Package `json:"packages"`
		}{Packages: pkgs})
		return nil
	}

	printPackages(cmd.OutOrStdout(), pkgs)
	return nil
}
