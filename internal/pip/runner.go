package pip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmr-tortoise/bootcheck/internal/model"
)

// Runner executes pip commands.
//
// The zero value is not usable; construct it with NewRunner so that the
// command prefix is validated and output writers default to the process's
// stdout/stderr.
type Runner struct {
	// command is the argv prefix, e.g. ["pip"] or ["python3", "-m", "pip"].
	command []string

	// stdout and stderr receive the installer's streamed output.
	stdout io.Writer
	stderr io.Writer

	log *zap.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithOutput redirects the installer's streamed output.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithLogger attaches a logger for debug tracing of executed commands.
func WithLogger(log *zap.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// NewRunner creates a Runner for the given argv prefix.
func NewRunner(command []string, opts ...Option) (*Runner, error) {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return nil, errors.New("pip command must not be empty")
	}
	r := &Runner{
		command: append([]string(nil), command...),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Install runs `<pip> install [--force-reinstall] -r <manifest>`.
//
// The installer's stdout and stderr are streamed as-is so that its own
// messages (including "Could not open requirements file") reach the user.
// The returned InstallResult is always non-nil. The error is non-nil when
// pip exited non-zero or could not be started.
func (r *Runner) Install(ctx context.Context, manifest string, force bool) (*model.InstallResult, error) {
	args := []string{"install"}
	if force {
		args = append(args, "--force-reinstall")
	}
	args = append(args, "-r", manifest)

	cmd := r.build(ctx, args...)
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	result := &model.InstallResult{Command: cmd.Args}
	r.log.Debug("running installer", zap.Strings("argv", cmd.Args))

	start := time.Now()
	err := cmd.Run()
	result.Duration = time.Since(start)
	result.ExitCode = exitCode(err)

	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("%s install failed: %w", r.command[0], err)
	}
	return result, nil
}

// List runs `<pip> list --format=json` and returns every installed package.
func (r *Runner) List(ctx context.Context) ([]model.Package, error) {
	cmd := r.build(ctx, "list", "--format=json", "--disable-pip-version-check")

	// Capture stdout and stderr separately so stderr can be included in
	// the error message while stdout is decoded on success.
	var stdout bytes.Buffer
	var stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.log.Debug("listing packages", zap.Strings("argv", cmd.Args))

	if err := cmd.Run(); err != nil {
		message := fmt.Sprintf("%s list failed", strings.Join(r.command, " "))
		if s := strings.TrimSpace(stderr.String()); s != "" {
			message = fmt.Sprintf("%s: %s", message, s)
		}
		return nil, fmt.Errorf("%s: %w", message, err)
	}

	return ParseList(stdout.Bytes())
}

// Report lists installed packages and keeps those matching patterns.
func (r *Runner) Report(ctx context.Context, patterns []string) ([]model.Package, error) {
	pkgs, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	matched := Filter(pkgs, patterns)
	r.log.Debug("package report", zap.Int("installed", len(pkgs)), zap.Int("matched", len(matched)))
	return matched, nil
}

// build creates the exec.Cmd for the configured prefix plus args.
func (r *Runner) build(ctx context.Context, args ...string) *exec.Cmd {
	argv := make([]string, 0, len(r.command)-1+len(args))
	argv = append(argv, r.command[1:]...)
	argv = append(argv, args...)

	// #nosec G204 -- the command prefix comes from the operator's config.
	cmd := exec.CommandContext(ctx, r.command[0], argv...)
	return cmd
}

// exitCode extracts the process exit status from a Run error.
// 0 for success, the child's status for *exec.ExitError, -1 when the
// process never started.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
