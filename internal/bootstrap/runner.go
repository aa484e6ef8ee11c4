package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/mmr-tortoise/bootcheck/internal/model"
	"github.com/mmr-tortoise/bootcheck/internal/port"
)

// Installer installs the packages listed in a manifest. *pip.Runner
// implements it.
type Installer interface {
	Install(ctx context.Context, manifest string, force bool) (*model.InstallResult, error)
}

// Reporter lists installed packages whose names match patterns.
// *pip.Runner implements it.
type Reporter interface {
	Report(ctx context.Context, patterns []string) ([]model.Package, error)
}

// PublisherFinder lists the containers publishing a host port.
type PublisherFinder interface {
	FindPublishers(ctx context.Context, port int) ([]model.Publisher, error)
}

// PublisherFinderFunc adapts a function to PublisherFinder.
type PublisherFinderFunc func(ctx context.Context, port int) ([]model.Publisher, error)

// FindPublishers calls f.
func (f PublisherFinderFunc) FindPublishers(ctx context.Context, port int) ([]model.Publisher, error) {
	return f(ctx, port)
}

// Options are the per-run parameters.
type Options struct {
	// Requirements is the manifest path handed to the installer.
	Requirements string

	// Force reinstalls every package even when already satisfied.
	Force bool

	// Patterns select the packages shown by the report step.
	Patterns []string

	// Port is the TCP port that must be listening.
	Port int

	// Wait is the polling schedule of the verify step. A zero Timeout
	// checks once.
	Wait port.WaitConfig
}

// Runner executes the steps of a run.
type Runner struct {
	Installer Installer
	Reporter  Reporter
	Checker   port.Checker

	// Publishers is optional. When nil the Docker step is skipped.
	Publishers PublisherFinder

	Options Options

	// Out receives the human-readable status lines. Nil means os.Stdout.
	Out io.Writer

	// Quiet suppresses the status lines, for JSON output.
	Quiet bool

	Log *zap.Logger
}

// Run executes install, report and verify in that order, then the
// optional publisher lookup.
//
// The returned RunResult is always non-nil. The error is nil when the port
// was observed listening. When it was not, the error is a *model.CLIError
// with ExitPortNotListening whose message has already been printed.
// Any other error comes from the verify step itself (cancelled context,
// invalid port).
func (r *Runner) Run(ctx context.Context) (*model.RunResult, error) {
	result := &model.RunResult{Port: r.Options.Port, Packages: []model.Package{}}

	result.Install = r.Install(ctx)
	result.Packages = r.Report(ctx)

	status, err := r.Verify(ctx)
	if status != nil {
		result.Listening = status.Listening
		result.Listeners = status.Listeners
		result.Method = status.Method
		result.Attempts = status.Attempts
	}

	// Publishers help explain a failed check too, so the lookup runs
	// whatever the verdict.
	result.Publishers = r.FindPublishers(ctx)
	return result, err
}

// Install runs the installer. Failures are logged and returned in the
// result only; they never stop a run.
func (r *Runner) Install(ctx context.Context) *model.InstallResult {
	log := r.logger()
	r.printf("📦 Installing dependencies from %s\n", r.Options.Requirements)

	res, err := r.Installer.Install(ctx, r.Options.Requirements, r.Options.Force)
	if res == nil {
		res = &model.InstallResult{ExitCode: -1}
		if err != nil {
			res.Error = err.Error()
		}
	}
	if err != nil {
		log.Warn("dependency install failed, continuing",
			zap.String("requirements", r.Options.Requirements),
			zap.Int("exit_code", res.ExitCode),
			zap.Error(err))
		return res
	}

	log.Debug("dependency install finished", zap.Duration("duration", res.Duration))
	return res
}

// Report lists matching packages and prints them. Failures are logged and
// yield an empty listing.
func (r *Runner) Report(ctx context.Context) []model.Package {
	r.printf("🔍 Installed packages matching %s:\n", strings.Join(r.Options.Patterns, ", "))

	pkgs, err := r.Reporter.Report(ctx, r.Options.Patterns)
	if err != nil {
		r.logger().Warn("package report failed, continuing", zap.Error(err))
		return []model.Package{}
	}
	if pkgs == nil {
		pkgs = []model.Package{}
	}

	if len(pkgs) == 0 {
		r.printf("  (none)\n")
	}
	for _, p := range pkgs {
		r.printf("  %s\n", p)
	}
	return pkgs
}

// Verify checks the port, polling when Options.Wait has a timeout, and
// prints the verdict line.
//
// A port that is not listening yields the status together with a
// *model.CLIError (ExitPortNotListening, Reported). The status is nil only
// when the check itself failed.
func (r *Runner) Verify(ctx context.Context) (*model.PortStatus, error) {
	p := r.Options.Port

	status, err := port.Wait(ctx, r.Checker, p, r.Options.Wait, r.logger())
	if err != nil {
		return nil, fmt.Errorf("port check failed: %w", err)
	}

	r.logger().Debug("port check finished",
		zap.Int("port", p),
		zap.Bool("listening", status.Listening),
		zap.String("method", status.Method),
		zap.Int("attempts", status.Attempts))

	if status.Listening {
		r.printf("✅ Service is listening on port %d\n", p)
		for _, l := range status.Listeners {
			r.printf("  %s\n", l)
		}
		return status, nil
	}

	r.printf("❌ Port %d is not listening\n", p)
	return status, &model.CLIError{
		Code:     model.ExitPortNotListening,
		Message:  fmt.Sprintf("port %d is not listening", p),
		Reported: true,
	}
}

// FindPublishers runs the optional Docker lookup. Docker being absent or
// unreachable is logged at debug level and yields nil.
func (r *Runner) FindPublishers(ctx context.Context) []model.Publisher {
	if r.Publishers == nil {
		return nil
	}

	pubs, err := r.Publishers.FindPublishers(ctx, r.Options.Port)
	if err != nil {
		r.logger().Debug("docker lookup skipped", zap.Error(err))
		return nil
	}
	for _, pub := range pubs {
		r.printf("🐳 Published by container %s (%s, image %s): host %d -> container %d\n",
			pub.ContainerName, pub.ContainerID, pub.Image, pub.HostPort, pub.ContainerPort)
	}
	return pubs
}

func (r *Runner) printf(format string, args ...any) {
	if r.Quiet {
		return
	}
	out := r.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, format, args...)
}

func (r *Runner) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}
