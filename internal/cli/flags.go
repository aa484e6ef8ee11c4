package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/bootcheck/internal/config"
)

// globalFlags are the persistent flags that override config values.
// A flag only overrides when the user actually passed it (Changed), so
// that defaults, the config file and the environment keep their say.
type globalFlags struct {
	configPath   string
	requirements string
	port         int
	pip          string
	patterns     []string
	noForce      bool
	wait         time.Duration
	noDocker     bool
}

// register binds the flags to cmd's persistent flag set.
func (f *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "",
		"Config file (.yaml, .yml, .json, .jsonc or .toml)")
	pf.StringVarP(&f.requirements, "requirements", "r", config.DefaultRequirements,
		"Dependency manifest passed to pip install -r")
	pf.IntVarP(&f.port, "port", "p", config.DefaultPort,
		"TCP port that must be listening")
	pf.StringVar(&f.pip, "pip", "pip",
		`Installer command, e.g. "python3 -m pip"`)
	pf.StringSliceVar(&f.patterns, "pattern", config.DefaultPatterns,
		"Package name substring to report (repeatable or comma separated)")
	pf.BoolVar(&f.noForce, "no-force", false,
		"Do not pass --force-reinstall to pip")
	pf.DurationVar(&f.wait, "wait", 0,
		"Poll the port for up to this long (0 checks once)")
	pf.BoolVar(&f.noDocker, "no-docker", false,
		"Skip the Docker publisher lookup")
}

// apply copies the flags the user set onto cfg.
func (f *globalFlags) apply(cfg *config.Config, fs *pflag.FlagSet) {
	if fs.Changed("requirements") {
		cfg.Requirements = f.requirements
	}
	if fs.Changed("port") {
		cfg.Port = f.port
	}
	if fs.Changed("pip") {
		cfg.Pip = strings.Fields(f.pip)
	}
	if fs.Changed("pattern") {
		cfg.Patterns = f.patterns
	}
	if fs.Changed("no-force") {
		cfg.ForceReinstall = !f.noForce
	}
	if fs.Changed("wait") {
		cfg.Wait.Timeout = config.Duration(f.wait)
	}
	if fs.Changed("no-docker") {
		cfg.Docker = !f.noDocker
	}
}

// resolveConfig builds the effective configuration with the precedence
// default < config file < environment < flags, then validates it.
func resolveConfig(fs *pflag.FlagSet, getenv func(string) string) (config.Config, error) {
	cfg := config.Default()
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	config.ApplyEnv(&cfg, getenv)
	flags.apply(&cfg, fs)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
