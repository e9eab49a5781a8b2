// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/modkit/modkit/internal/installer"
)

const (
	// LogLevelDebug enables debug output.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn shows warnings and errors only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError shows errors only.
	LogLevelError LogLevel = "error"

	// DefaultModsDirName is the mods directory under the game directory.
	DefaultModsDirName = "mods"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel names a charmbracelet/log level.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InstallConfig holds archive installation defaults.
	InstallConfig struct {
		// Policy is the replace policy used when a command names none.
		Policy installer.Policy `json:"policy" mapstructure:"policy"`
		// Workers bounds concurrent installs.
		Workers int `json:"workers" mapstructure:"workers"`
		// EnableOnInstall marks freshly installed mods enabled.
		EnableOnInstall bool `json:"enable_on_install" mapstructure:"enable_on_install"`
	}

	// UpdatesConfig tunes the update checker.
	UpdatesConfig struct {
		// Concurrency bounds parallel version-file fetches.
		Concurrency int `json:"concurrency" mapstructure:"concurrency"`
		// Timeout applies to each fetch attempt.
		Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
		// CacheTTL is how long fetched documents are reused. Zero disables caching.
		CacheTTL time.Duration `json:"cache_ttl" mapstructure:"cache_ttl"`
		// UserAgent overrides the HTTP User-Agent header.
		UserAgent string `json:"user_agent" mapstructure:"user_agent"`
	}

	// BridgeConfig holds the listen address of `modkit serve`.
	BridgeConfig struct {
		Host string `json:"host" mapstructure:"host"`
		// Port 0 picks a free port.
		Port int `json:"port" mapstructure:"port"`
	}

	// Config holds the application configuration.
	Config struct {
		// GameDir is the game installation directory.
		GameDir string `json:"game_dir" mapstructure:"game_dir"`
		// ModsDir is the mod root. Empty means <GameDir>/mods.
		ModsDir string `json:"mods_dir" mapstructure:"mods_dir"`
		// GameVersion is the installed game version mods are checked against.
		GameVersion string `json:"game_version" mapstructure:"game_version"`
		// Install holds installation defaults.
		Install InstallConfig `json:"install" mapstructure:"install"`
		// Updates tunes the update checker.
		Updates UpdatesConfig `json:"updates" mapstructure:"updates"`
		// Bridge configures the command bridge server.
		Bridge BridgeConfig `json:"bridge" mapstructure:"bridge"`
		// Watch rescans the mod root when it changes on disk.
		Watch bool `json:"watch" mapstructure:"watch"`
		// LogLevel sets the minimum log level.
		LogLevel LogLevel `json:"log_level" mapstructure:"log_level"`
	}

	// InvalidConfigError is returned when Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Install: InstallConfig{
			Policy:  installer.PolicyReplaceIfNewer,
			Workers: 2,
		},
		Updates: UpdatesConfig{
			Concurrency: 8,
			Timeout:     500 * time.Millisecond,
			CacheTTL:    10 * time.Minute,
		},
		Bridge: BridgeConfig{
			Host: "127.0.0.1",
		},
		LogLevel: LogLevelInfo,
	}
}

// ModsRoot returns the mod root: ModsDir when set, otherwise the mods
// directory under GameDir. It is empty when neither is configured.
func (c *Config) ModsRoot() string {
	if c.ModsDir != "" {
		return c.ModsDir
	}
	if c.GameDir == "" {
		return ""
	}
	return filepath.Join(c.GameDir, DefaultModsDirName)
}

// Validate checks the fields the schema cannot see, such as environment
// overrides, and returns an *InvalidConfigError listing every problem.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Install.Policy.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("install.policy: %w", err))
	}
	if c.Install.Workers < 1 {
		errs = append(errs, fmt.Errorf("install.workers: must be at least 1, got %d", c.Install.Workers))
	}
	if c.Updates.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("updates.concurrency: must be at least 1, got %d", c.Updates.Concurrency))
	}
	if c.Updates.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("updates.timeout: must be positive, got %s", c.Updates.Timeout))
	}
	if c.Updates.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("updates.cache_ttl: must not be negative, got %s", c.Updates.CacheTTL))
	}
	if strings.TrimSpace(c.Bridge.Host) == "" {
		errs = append(errs, errors.New("bridge.host: must not be empty"))
	}
	if c.Bridge.Port < 0 || c.Bridge.Port > 65535 {
		errs = append(errs, fmt.Errorf("bridge.port: out of range: %d", c.Bridge.Port))
	}
	if err := c.LogLevel.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %d field error(s): %s", len(e.FieldErrors), strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Validate returns an *InvalidLogLevelError unless l is a known level.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return &InvalidLogLevelError{Value: l}
	}
}

// Level converts l to a log.Level. Unknown values map to InfoLevel.
func (l LogLevel) Level() log.Level {
	lvl, err := log.ParseLevel(string(l))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }
