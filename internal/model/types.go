package model

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"
)

// Package is one row of the Python package listing, as reported by
// `pip list --format=json`.
type Package struct {
	// Name is the distribution name exactly as pip prints it
	// (e.g., "streamlit", "scikit-learn").
	Name string `json:"name"`

	// Version is the installed version string (e.g., "1.30.0").
	Version string `json:"version"`
}

// String returns "name==version", the same notation used in a
// requirements manifest.
func (p Package) String() string {
	return p.Name + "==" + p.Version
}

// SocketFamily identifies the address family a listener was found on.
type SocketFamily string

const (
	// FamilyTCP4 is an IPv4 TCP socket (/proc/net/tcp).
	FamilyTCP4 SocketFamily = "tcp4"

	// FamilyTCP6 is an IPv6 TCP socket (/proc/net/tcp6).
	FamilyTCP6 SocketFamily = "tcp6"
)

// String returns the string representation of SocketFamily.
func (f SocketFamily) String() string {
	return string(f)
}

// Listener is a single TCP socket in the LISTEN state.
type Listener struct {
	// Address is the local bind address ("0.0.0.0", "127.0.0.1", "::").
	Address string `json:"address"`

	// Port is the local port number (1-65535).
	Port int `json:"port"`

	// Family is tcp4 or tcp6.
	Family SocketFamily `json:"family"`
}

// String returns "address:port (family)", bracketing IPv6 addresses.
func (l Listener) String() string {
	return fmt.Sprintf("%s (%s)", net.JoinHostPort(l.Address, strconv.Itoa(l.Port)), l.Family)
}

// Check methods reported in PortStatus.Method.
const (
	// MethodProcFS means the kernel socket table was read.
	MethodProcFS = "procfs"

	// MethodDial means a loopback connect probe was used because the
	// socket table was unavailable.
	MethodDial = "dial"
)

// PortStatus is the verdict of one listening check.
type PortStatus struct {
	// Port is the TCP port that was checked.
	Port int `json:"port"`

	// Listening reports whether any socket is in the LISTEN state on Port.
	Listening bool `json:"listening"`

	// Listeners are the matching sockets. Only filled by the procfs method.
	Listeners []Listener `json:"listeners,omitempty"`

	// Method is MethodProcFS or MethodDial.
	Method string `json:"method"`

	// Attempts is how many checks were made (more than one only when
	// waiting for a slow-starting service).
	Attempts int `json:"attempts"`
}

// Publisher is a running Docker container that publishes a host port.
// It is only used for diagnostics and never affects the exit code.
type Publisher struct {
	// ContainerID is the short (12 character) container ID.
	ContainerID string `json:"containerId"`

	// ContainerName is the container name without Docker's leading "/".
	ContainerName string `json:"containerName"`

	// Image is the image reference the container was started from.
	Image string `json:"image"`

	// HostPort is the published port on the host.
	HostPort int `json:"hostPort"`

	// ContainerPort is the port inside the container.
	ContainerPort int `json:"containerPort"`
}

// InstallResult describes one run of the external package installer.
type InstallResult struct {
	// Command is the full argv that was executed, for logging.
	Command []string `json:"command"`

	// ExitCode is the installer's process exit code. -1 means the process
	// could not be started at all (e.g., pip is not on PATH).
	ExitCode int `json:"exitCode"`

	// Duration is the wall-clock time the installer ran for.
	Duration time.Duration `json:"duration"`

	// Error is the failure message, empty on success.
	Error string `json:"error,omitempty"`
}

// Succeeded reports whether the installer exited with code 0.
func (r *InstallResult) Succeeded() bool {
	return r != nil && r.ExitCode == 0 && r.Error == ""
}

// RunResult is the aggregate outcome of a bootstrap-and-verify run.
// It is what `--json` prints.
type RunResult struct {
	// Install is nil when the install step was not part of the run.
	Install *InstallResult `json:"install,omitempty"`

	// Packages holds the filtered package listing from the report step.
	Packages []Package `json:"packages"`

	// Port is the TCP port that was checked.
	Port int `json:"port"`

	// Listening is the verify verdict, the only value that drives the
	// exit code.
	Listening bool `json:"listening"`

	// Listeners are the sockets found on Port (empty when not listening
	// or when the dial fallback was used).
	Listeners []Listener `json:"listeners,omitempty"`

	// Method is how the verdict was reached (MethodProcFS or MethodDial).
	Method string `json:"method,omitempty"`

	// Attempts is the number of checks made by the verify step.
	Attempts int `json:"attempts,omitempty"`

	// Publishers are the containers publishing Port, if Docker was queried.
	Publishers []Publisher `json:"publishers,omitempty"`
}

// SortPackages orders packages by name so output is stable across runs.
func SortPackages(pkgs []Package) {
	sort.Slice(pkgs, func(i, j int) bool {
		return pkgs[i].Name < pkgs[j].Name
	})
}

// ValidatePort checks that port is a usable TCP port number.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d out of range (1-65535)", port)
	}
	return nil
}

// ExitCode defines the process exit codes of the CLI.
// Scripts calling bootcheck rely on 0 and 1 only; 2 is reserved for
// invocations that pass bad flags or configuration.
type ExitCode int

const (
	// ExitSuccess indicates the port was observed in the listening state.
	ExitSuccess ExitCode = 0

	// ExitPortNotListening indicates the port was not observed listening.
	ExitPortNotListening ExitCode = 1

	// ExitGeneralError indicates an unspecified error occurred, such as an
	// interrupted port check. It shares code 1 with ExitPortNotListening
	// on purpose: callers only distinguish "observed listening" (0) from
	// everything else, and the printed message tells the two apart.
	ExitGeneralError ExitCode = 1

	// ExitInvalidConfig indicates invalid flags, environment values or
	// config file contents.
	ExitInvalidConfig ExitCode = 2
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error

	// Reported marks errors whose message was already printed to the
	// console by the step that produced them.
	Reported bool
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
