package config

import (
	"strconv"
	"strings"
	"time"
)

// Environment variable names read by ApplyEnv.
const (
	EnvPort         = "BOOTCHECK_PORT"
	EnvRequirements = "BOOTCHECK_REQUIREMENTS"
	EnvPip          = "BOOTCHECK_PIP"
	EnvPatterns     = "BOOTCHECK_PATTERNS"
	EnvWait         = "BOOTCHECK_WAIT"
	EnvDocker       = "BOOTCHECK_DOCKER"
	EnvLogLevel     = "BOOTCHECK_LOG_LEVEL"
)

// ApplyEnv overlays BOOTCHECK_* environment variables on cfg. getenv is
// usually os.Getenv. Unset, blank or unparsable values leave cfg untouched.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v, ok := parseInt(getenv(EnvPort)); ok {
		cfg.Port = v
	}
	if v := strings.TrimSpace(getenv(EnvRequirements)); v != "" {
		cfg.Requirements = v
	}
	if v := strings.Fields(getenv(EnvPip)); len(v) > 0 {
		cfg.Pip = v
	}
	if v := SplitList(getenv(EnvPatterns)); len(v) > 0 {
		cfg.Patterns = v
	}
	if v, ok := parseDuration(getenv(EnvWait)); ok {
		cfg.Wait.Timeout = Duration(v)
	}
	if v, ok := parseBool(getenv(EnvDocker)); ok {
		cfg.Docker = v
	}
	if raw := strings.TrimSpace(getenv(EnvLogLevel)); raw != "" {
		if v, err := ParseLogLevel(raw); err == nil {
			cfg.LogLevel = v
		}
	}
}

func parseInt(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseDuration(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
