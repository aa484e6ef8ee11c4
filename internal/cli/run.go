package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mmr-tortoise/bootcheck/internal/bootstrap"
	"github.com/mmr-tortoise/bootcheck/internal/config"
	"github.com/mmr-tortoise/bootcheck/internal/docker"
	"github.com/mmr-tortoise/bootcheck/internal/model"
	"github.com/mmr-tortoise/bootcheck/internal/pip"
	"github.com/mmr-tortoise/bootcheck/internal/port"
)

// waitSchedule converts the configured polling schedule.
func waitSchedule(w config.WaitConfig) port.WaitConfig {
	return port.WaitConfig{
		Timeout:         w.Timeout.Std(),
		InitialInterval: w.InitialInterval.Std(),
		MaxInterval:     w.MaxInterval.Std(),
		Multiplier:      w.Multiplier,
		Jitter:          w.Jitter,
	}
}

// newRunner wires the real pip, procfs scanner and Docker lookup into a
// bootstrap.Runner for cfg. Console output goes to the command's writers.
func newRunner(cmd *cobra.Command, cfg config.Config, log *zap.Logger, json bool) (*bootstrap.Runner, *port.Scanner, error) {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	// In JSON mode stdout carries one document, so pip's own output moves
	// to stderr.
	var pipOut io.Writer = stdout
	if json {
		pipOut = stderr
	}

	installer, err := pip.NewRunner(cfg.Pip,
		pip.WithOutput(pipOut, stderr),
		pip.WithLogger(log.Named("pip")))
	if err != nil {
		return nil, nil, model.WrapCLIError(model.ExitInvalidConfig, "invalid pip command", err)
	}

	scanner := port.NewScanner(port.WithLogger(log.Named("port")))

	r := &bootstrap.Runner{
		Installer: installer,
		Reporter:  installer,
		Checker:   scanner,
		Options: bootstrap.Options{
			Requirements: cfg.Requirements,
			Force:        cfg.ForceReinstall,
			Patterns:     cfg.Patterns,
			Port:         cfg.Port,
			Wait:         waitSchedule(cfg.Wait),
		},
		Out:   stdout,
		Quiet: json,
		Log:   log,
	}
	if cfg.Docker {
		r.Publishers = bootstrap.PublisherFinderFunc(docker.Lookup)
	}
	return r, scanner, nil
}

// runAll is the root command: the full install, report, verify sequence.
func runAll(cmd *cobra.Command) error {
	ctx := cmd.Context()
	r, scanner, err := newRunner(cmd, runConfig, logger, jsonOutput)
	if err != nil {
		return err
	}

	result, err := r.Run(ctx)
	if jsonOutput {
		printJSON(cmd.OutOrStdout(), result)
	}
	if !result.Listening {
		logOpenPorts(ctx, scanner, runConfig.Port)
	}
	return err
}

// logOpenPorts lists the ports that are listening at debug level, to help
// spot a service that bound a different port than expected.
func logOpenPorts(ctx context.Context, scanner *port.Scanner, want int) {
	if !logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	ports, err := scanner.UsedPorts(ctx)
	if err != nil {
		logger.Debug("cannot list listening ports", zap.Error(err))
		return
	}
	logger.Debug("listening ports", zap.Int("wanted", want), zap.Ints("ports", ports))
}
