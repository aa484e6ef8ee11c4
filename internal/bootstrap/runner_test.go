package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mmr-tortoise/bootcheck/internal/model"
	"github.com/mmr-tortoise/bootcheck/internal/port"
)

// recorder collects the order in which steps are called.
type recorder struct {
	calls []string
}

type fakeInstaller struct {
	rec    *recorder
	result *model.InstallResult
	err    error

	manifest string
	force    bool
}

func (f *fakeInstaller) Install(_ context.Context, manifest string, force bool) (*model.InstallResult, error) {
	f.rec.calls = append(f.rec.calls, "install")
	f.manifest, f.force = manifest, force
	return f.result, f.err
}

type fakeReporter struct {
	rec  *recorder
	pkgs []model.Package
	err  error
}

func (f *fakeReporter) Report(_ context.Context, _ []string) ([]model.Package, error) {
	f.rec.calls = append(f.rec.calls, "report")
	return f.pkgs, f.err
}

type fakeChecker struct {
	rec       *recorder
	listening bool
	err       error
}

func (f *fakeChecker) Check(_ context.Context, p int) (*model.PortStatus, error) {
	f.rec.calls = append(f.rec.calls, "verify")
	if f.err != nil {
		return nil, f.err
	}
	status := &model.PortStatus{Port: p, Listening: f.listening, Method: model.MethodProcFS, Attempts: 1}
	if f.listening {
		status.Listeners = []model.Listener{{Address: "0.0.0.0", Port: p, Family: model.FamilyTCP4}}
	}
	return status, nil
}

func defaultOptions() Options {
	return Options{
		Requirements: "requirements.txt",
		Force:        true,
		Patterns:     []string{"streamlit", "joblib", "jieba"},
		Port:         8502,
	}
}

// newTestRunner builds a Runner with healthy fakes writing to a buffer.
func newTestRunner(t *testing.T, listening bool) (*Runner, *recorder, *bytes.Buffer) {
	t.Helper()

	rec := &recorder{}
	out := &bytes.Buffer{}
	r := &Runner{
		Installer: &fakeInstaller{rec: rec, result: &model.InstallResult{Command: []string{"pip"}}},
		Reporter: &fakeReporter{rec: rec, pkgs: []model.Package{
			{Name: "joblib", Version: "1.3.2"},
			{Name: "streamlit", Version: "1.30.0"},
		}},
		Checker: &fakeChecker{rec: rec, listening: listening},
		Options: defaultOptions(),
		Out:     out,
		Log:     zaptest.NewLogger(t),
	}
	return r, rec, out
}

func TestRun_Listening(t *testing.T) {
	r, rec, out := newTestRunner(t, true)

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"install", "report", "verify"}, rec.calls)
	assert.True(t, result.Listening)
	assert.Equal(t, 8502, result.Port)
	assert.Len(t, result.Packages, 2)
	assert.Equal(t, model.MethodProcFS, result.Method)
	assert.Contains(t, out.String(), "✅ Service is listening on port 8502\n")
	assert.Contains(t, out.String(), "  streamlit==1.30.0\n")
	assert.NotContains(t, out.String(), "❌")
}

func TestRun_NotListening(t *testing.T) {
	r, rec, out := newTestRunner(t, false)

	result, err := r.Run(context.Background())
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitPortNotListening, cliErr.Code)
	assert.True(t, cliErr.Reported)

	assert.Equal(t, []string{"install", "report", "verify"}, rec.calls)
	assert.False(t, result.Listening)
	assert.Contains(t, out.String(), "❌ Port 8502 is not listening\n")
	assert.NotContains(t, out.String(), "✅")
}

// TestRun_FailuresDoNotStopVerify covers a missing manifest and a broken
// lister: both are logged and the port check still runs and decides.
func TestRun_FailuresDoNotStopVerify(t *testing.T) {
	rec := &recorder{}
	out := &bytes.Buffer{}
	r := &Runner{
		Installer: &fakeInstaller{
			rec:    rec,
			result: &model.InstallResult{ExitCode: 1, Error: "exit status 1"},
			err:    errors.New("pip install failed: exit status 1"),
		},
		Reporter: &fakeReporter{rec: rec, err: errors.New("pip list failed")},
		Checker:  &fakeChecker{rec: rec, listening: true},
		Options:  defaultOptions(),
		Out:      out,
		Log:      zaptest.NewLogger(t),
	}

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"install", "report", "verify"}, rec.calls)
	assert.Equal(t, 1, result.Install.ExitCode)
	assert.False(t, result.Install.Succeeded())
	assert.NotNil(t, result.Packages)
	assert.Empty(t, result.Packages)
	assert.True(t, result.Listening)
}

// TestRun_InstallerNotStarted covers an installer returning no result at
// all, as when the executable is missing.
func TestRun_InstallerNotStarted(t *testing.T) {
	r, rec, _ := newTestRunner(t, false)
	r.Installer = &fakeInstaller{rec: rec, err: errors.New(`exec: "pip": executable file not found in $PATH`)}

	result, err := r.Run(context.Background())
	require.Error(t, err)

	require.NotNil(t, result.Install)
	assert.Equal(t, -1, result.Install.ExitCode)
	assert.Contains(t, result.Install.Error, "executable file not found")
	assert.Equal(t, []string{"install", "report", "verify"}, rec.calls)
}

func TestRun_CheckerError(t *testing.T) {
	r, rec, out := newTestRunner(t, false)
	r.Checker = &fakeChecker{rec: rec, err: context.Canceled}

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var cliErr *model.CLIError
	assert.False(t, errors.As(err, &cliErr))
	assert.NotContains(t, out.String(), "❌")
}

func TestRun_Idempotent(t *testing.T) {
	r, _, _ := newTestRunner(t, true)

	first, err := r.Run(context.Background())
	require.NoError(t, err)
	second, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRun_PassesOptions(t *testing.T) {
	r, rec, _ := newTestRunner(t, true)
	installer := &fakeInstaller{rec: rec, result: &model.InstallResult{}}
	r.Installer = installer
	r.Options.Requirements = "deploy/requirements.txt"
	r.Options.Force = false

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "deploy/requirements.txt", installer.manifest)
	assert.False(t, installer.force)
}

func TestRun_Publishers(t *testing.T) {
	r, _, out := newTestRunner(t, false)
	r.Publishers = PublisherFinderFunc(func(_ context.Context, p int) ([]model.Publisher, error) {
		return []model.Publisher{{
			ContainerID:   "3f4e1c9a2b7d",
			ContainerName: "fake-news-web",
			Image:         "fake-news:latest",
			HostPort:      p,
			ContainerPort: 8501,
		}}, nil
	})

	result, err := r.Run(context.Background())

	// Publishers never change the verdict.
	require.Error(t, err)
	require.Len(t, result.Publishers, 1)
	assert.Equal(t, "fake-news-web", result.Publishers[0].ContainerName)
	assert.Contains(t, out.String(), "fake-news-web")
}

func TestRun_PublishersUnavailable(t *testing.T) {
	r, _, _ := newTestRunner(t, true)
	r.Publishers = PublisherFinderFunc(func(context.Context, int) ([]model.Publisher, error) {
		return nil, errors.New("docker socket not found")
	})

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, result.Publishers)
}

func TestRun_Quiet(t *testing.T) {
	r, _, out := newTestRunner(t, true)
	r.Quiet = true

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out.String())
}

func TestReport_NoMatches(t *testing.T) {
	r, rec, out := newTestRunner(t, true)
	r.Reporter = &fakeReporter{rec: rec}

	pkgs := r.Report(context.Background())

	assert.NotNil(t, pkgs)
	assert.Empty(t, pkgs)
	assert.Contains(t, out.String(), "Installed packages matching streamlit, joblib, jieba:\n  (none)\n")
}

// startsListening reports listening from the n-th check on.
type startsListening struct {
	n     int
	calls int
}

func (s *startsListening) Check(_ context.Context, p int) (*model.PortStatus, error) {
	s.calls++
	return &model.PortStatus{Port: p, Listening: s.calls >= s.n, Method: model.MethodDial, Attempts: 1}, nil
}

func TestVerify_WaitsForSlowService(t *testing.T) {
	r, _, out := newTestRunner(t, false)
	checker := &startsListening{n: 3}
	r.Checker = checker
	r.Options.Wait = port.WaitConfig{
		Timeout:         5 * time.Second,
		InitialInterval: time.Millisecond,
		Multiplier:      1,
	}

	status, err := r.Verify(context.Background())
	require.NoError(t, err)

	assert.True(t, status.Listening)
	assert.Equal(t, 3, status.Attempts)
	assert.Contains(t, out.String(), "✅ Service is listening on port 8502")
}

func TestVerify_ZeroWaitChecksOnce(t *testing.T) {
	r, _, _ := newTestRunner(t, false)
	checker := &startsListening{n: 2}
	r.Checker = checker

	_, err := r.Verify(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, checker.calls)
}
