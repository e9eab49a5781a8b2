// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/modkit/modkit/internal/issue"
	"github.com/modkit/modkit/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "modkit"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. MODKIT_LOG_LEVEL.
	EnvPrefix = "MODKIT"
)

// ErrConfigExists is returned by CreateDefaultConfig when the file is already there.
var ErrConfigExists = errors.New("config file already exists")

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the modkit configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. It returns the path of the file it read, if any.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()
	resolvedPath := ""

	// A --config path is used exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithSuggestion("Use 'modkit config init' to write a default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, "", loadError(opts.ConfigFilePath, err)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}

		cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(cuePath) {
			if err := loadCUEIntoViper(v, cuePath); err != nil {
				return nil, "", loadError(cuePath, err)
			}
			resolvedPath = cuePath
		}
		// No config file means defaults plus environment.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(sourceName(resolvedPath)).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Check " + EnvPrefix + "_* environment variables for typos").
			WithSuggestion("Run 'modkit config show' to see the effective values").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// newViper returns a viper instance with every key defaulted and bound to
// its MODKIT_ environment variable.
func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("game_dir", defaults.GameDir)
	v.SetDefault("mods_dir", defaults.ModsDir)
	v.SetDefault("game_version", defaults.GameVersion)
	v.SetDefault("install.policy", string(defaults.Install.Policy))
	v.SetDefault("install.workers", defaults.Install.Workers)
	v.SetDefault("install.enable_on_install", defaults.Install.EnableOnInstall)
	v.SetDefault("updates.concurrency", defaults.Updates.Concurrency)
	v.SetDefault("updates.timeout", defaults.Updates.Timeout.String())
	v.SetDefault("updates.cache_ttl", defaults.Updates.CacheTTL.String())
	v.SetDefault("updates.user_agent", defaults.Updates.UserAgent)
	v.SetDefault("bridge.host", defaults.Bridge.Host)
	v.SetDefault("bridge.port", defaults.Bridge.Port)
	v.SetDefault("watch", defaults.Watch)
	v.SetDefault("log_level", string(defaults.LogLevel))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func loadError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithIssue(issue.ConfigLoadFailedId).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		WithSuggestion("See 'modkit config --help' for configuration options").
		Wrap(err).
		BuildError()
}

func sourceName(p string) string {
	if p == "" {
		return "defaults"
	}
	return p
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper validates a CUE file against #Config and merges its
// contents into Viper. Fields are optional, so concreteness is not required
// and the result is a map rather than a Config.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	configMap, err := cueutil.ParseAndDecodeString[map[string]any](configSchema, data, "#Config",
		cueutil.WithConcrete(false),
		cueutil.WithFilename(path),
	)
	if err != nil {
		return err
	}

	// Merge keeps defaults and env overrides in effect.
	if err := v.MergeConfigMap(*configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default config file and returns its path.
// An existing file is left alone and ErrConfigExists is returned unless
// force is set.
func CreateDefaultConfig(force bool) (string, error) {
	cfgPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if !force && fileExists(cfgPath) {
		return cfgPath, fmt.Errorf("%s: %w", cfgPath, ErrConfigExists)
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// modkit configuration file\n")
	sb.WriteString("// Unset fields keep their defaults. MODKIT_* environment variables override this file.\n\n")

	if cfg.GameDir != "" {
		fmt.Fprintf(&sb, "game_dir: %q\n", cfg.GameDir)
	} else {
		sb.WriteString("// game_dir: \"/path/to/game\"\n")
	}
	if cfg.ModsDir != "" {
		fmt.Fprintf(&sb, "mods_dir: %q\n", cfg.ModsDir)
	} else {
		sb.WriteString("// mods_dir: \"/path/to/game/mods\"\n")
	}
	if cfg.GameVersion != "" {
		fmt.Fprintf(&sb, "game_version: %q\n", cfg.GameVersion)
	} else {
		sb.WriteString("// game_version: \"1.6.2\"\n")
	}

	sb.WriteString("\ninstall: {\n")
	fmt.Fprintf(&sb, "\tpolicy: %q\n", cfg.Install.Policy)
	fmt.Fprintf(&sb, "\tworkers: %d\n", cfg.Install.Workers)
	fmt.Fprintf(&sb, "\tenable_on_install: %v\n", cfg.Install.EnableOnInstall)
	sb.WriteString("}\n")

	sb.WriteString("\nupdates: {\n")
	fmt.Fprintf(&sb, "\tconcurrency: %d\n", cfg.Updates.Concurrency)
	fmt.Fprintf(&sb, "\ttimeout: %q\n", cfg.Updates.Timeout.String())
	fmt.Fprintf(&sb, "\tcache_ttl: %q\n", cfg.Updates.CacheTTL.String())
	if cfg.Updates.UserAgent != "" {
		fmt.Fprintf(&sb, "\tuser_agent: %q\n", cfg.Updates.UserAgent)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nbridge: {\n")
	fmt.Fprintf(&sb, "\thost: %q\n", cfg.Bridge.Host)
	fmt.Fprintf(&sb, "\tport: %d\n", cfg.Bridge.Port)
	sb.WriteString("}\n")

	fmt.Fprintf(&sb, "\nwatch: %v\n", cfg.Watch)
	fmt.Fprintf(&sb, "log_level: %q\n", cfg.LogLevel)

	return sb.String()
}
