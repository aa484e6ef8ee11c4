package cli

import (
	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/bootcheck/internal/model"
)

// NewVerifyCommand creates the "verify" cobra command.
func NewVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that the service port is listening",
		Long: `Check the kernel socket table for a TCP socket in the LISTEN state on the
service port. With --wait the check is repeated with exponential backoff
until the port opens or the wait time runs out.

Exit code 0 means listening, 1 means not listening.

Examples:
  bootcheck verify
  bootcheck verify --port 8080 --wait 1m
  bootcheck verify --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd)
		},
	}
}

// verifyResult is the JSON document of the verify command.
type verifyResult struct {
	*model.PortStatus
	Publishers []model.Publisher `json:"publishers,omitempty"`
}

func runVerify(cmd *cobra.Command) error {
	ctx := cmd.Context()
	r, scanner, err := newRunner(cmd, runConfig, logger, jsonOutput)
	if err != nil {
		return err
	}

	status, err := r.Verify(ctx)
	if status == nil {
		return err
	}
	publishers := r.FindPublishers(ctx)

	if jsonOutput {
		printJSON(cmd.OutOrStdout(), verifyResult{PortStatus: status, Publishers: publishers})
	}
	if !status.Listening {
		logOpenPorts(ctx, scanner, runConfig.Port)
	}
	return err
}
