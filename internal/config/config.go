// Package config holds the bootcheck run configuration.
//
// A run works with zero configuration: Default() is the fixed behavior of
// the shell bootstrap script bootcheck replaces (requirements.txt, pip,
// force reinstall, streamlit/joblib/jieba report, port 8502, one check).
// Every value can be changed, in increasing order of precedence, by a config
// file (Load), BOOTCHECK_* environment variables (ApplyEnv) and CLI flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmr-tortoise/bootcheck/internal/model"
)

// Default values. DefaultPort is the port the Streamlit service binds.
const (
	DefaultRequirements    = "requirements.txt"
	DefaultPort            = 8502
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 5 * time.Second
	DefaultMultiplier      = 2.0
)

// DefaultPatterns are the package name substrings shown by the report step.
var DefaultPatterns = []string{"streamlit", "joblib", "jieba"}

// Duration is a time.Duration that decodes from strings like "30s" in every
// supported file format.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText renders the duration in Go notation.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete run configuration.
type Config struct {
	// Requirements is the dependency manifest passed to `pip install -r`.
	Requirements string `yaml:"requirements" json:"requirements" toml:"requirements"`

	// Pip is the installer argv prefix, e.g. ["pip"] or ["python3", "-m", "pip"].
	Pip []string `yaml:"pip" json:"pip" toml:"pip"`

	// ForceReinstall adds --force-reinstall to the install command.
	ForceReinstall bool `yaml:"force_reinstall" json:"force_reinstall" toml:"force_reinstall"`

	// Patterns are the package name substrings the report step keeps.
	Patterns []string `yaml:"patterns" json:"patterns" toml:"patterns"`

	// Port is the TCP port that must be listening.
	Port int `yaml:"port" json:"port" toml:"port"`

	// Wait controls polling for a slow-starting service.
	Wait WaitConfig `yaml:"wait" json:"wait" toml:"wait"`

	// Docker enables the container publisher lookup after verify.
	Docker bool `yaml:"docker" json:"docker" toml:"docker"`

	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level" toml:"log_level"`
}

// WaitConfig is the polling schedule for the verify step.
// A zero Timeout means a single point-in-time check.
type WaitConfig struct {
	Timeout         Duration `yaml:"timeout" json:"timeout" toml:"timeout"`
	InitialInterval Duration `yaml:"initial_interval" json:"initial_interval" toml:"initial_interval"`
	MaxInterval     Duration `yaml:"max_interval" json:"max_interval" toml:"max_interval"`
	Multiplier      float64  `yaml:"multiplier" json:"multiplier" toml:"multiplier"`
	Jitter          bool     `yaml:"jitter" json:"jitter" toml:"jitter"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Requirements:   DefaultRequirements,
		Pip:            []string{"pip"},
		ForceReinstall: true,
		Patterns:       append([]string(nil), DefaultPatterns...),
		Port:           DefaultPort,
		Wait: WaitConfig{
			InitialInterval: Duration(DefaultInitialInterval),
			MaxInterval:     Duration(DefaultMaxInterval),
			Multiplier:      DefaultMultiplier,
		},
		Docker:   true,
		LogLevel: "info",
	}
}

// Validate checks the configuration for values the run cannot work with.
// Errors are CLIErrors with ExitInvalidConfig so the CLI exits with code 2.
func (c *Config) Validate() error {
	if err := model.ValidatePort(c.Port); err != nil {
		return model.WrapCLIError(model.ExitInvalidConfig, "invalid port", err)
	}
	if strings.TrimSpace(c.Requirements) == "" {
		return model.NewCLIError(model.ExitInvalidConfig, "requirements path must not be empty")
	}
	if len(c.Pip) == 0 || strings.TrimSpace(c.Pip[0]) == "" {
		return model.NewCLIError(model.ExitInvalidConfig, "pip command must not be empty")
	}
	if c.Wait.Timeout < 0 || c.Wait.InitialInterval < 0 || c.Wait.MaxInterval < 0 {
		return model.NewCLIError(model.ExitInvalidConfig, "wait durations must not be negative")
	}
	if c.Wait.Multiplier < 1 {
		return model.NewCLIError(model.ExitInvalidConfig,
			fmt.Sprintf("wait multiplier %.2f must be >= 1", c.Wait.Multiplier))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return model.WrapCLIError(model.ExitInvalidConfig, "invalid log level", err)
	}
	return nil
}

// ParseLogLevel normalizes a level name. Accepted: debug, info, warn
// (warning), error.
func ParseLogLevel(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug", "trace":
		return "debug", nil
	case "", "info":
		return "info", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unknown log level %q (valid: debug, info, warn, error)", raw)
	}
}

// SplitList splits a comma separated list, trimming blanks and dropping
// empty entries.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
