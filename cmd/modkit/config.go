// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/modkit/modkit/internal/config"
	"github.com/modkit/modkit/internal/issue"
)

// newConfigCommand creates the `modkit config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage modkit configuration",
		Long: `Manage modkit configuration.

Configuration is stored in:
  - Linux: ~/.config/modkit/config.cue
  - macOS: ~/Library/Application Support/modkit/config.cue
  - Windows: %APPDATA%\modkit\config.cue

MODKIT_* environment variables override the file, e.g.
MODKIT_INSTALL_POLICY=reject or MODKIT_UPDATES_TIMEOUT=2s.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.fail(cmd, showConfig(cmd, app))
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateDefaultConfig(force)
			if errors.Is(err, config.ErrConfigExists) {
				return app.fail(cmd, issue.NewErrorContext().
					WithOperation("create config file").
					WithResource(path).
					WithSuggestion("Pass --force to overwrite it with the defaults").
					Wrap(config.ErrConfigExists).
					BuildError())
			}
			if err != nil {
				return app.fail(cmd, err)
			}
			fmt.Fprintln(app.stdout, SuccessStyle.Render("✓ ")+"Created "+path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.flags.configFile != "" {
				fmt.Fprintln(app.stdout, app.flags.configFile)
				return nil
			}
			path, err := config.ConfigPath()
			if err != nil {
				return app.fail(cmd, err)
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(cmd *cobra.Command, app *App) error {
	cfg, path, err := config.LoadWithPath(cmd.Context(), config.LoadOptions{ConfigFilePath: app.flags.configFile})
	if err != nil {
		return err
	}
	if app.flags.modsDir != "" {
		cfg.ModsDir = app.flags.modsDir
	}
	if app.flags.gameVersion != "" {
		cfg.GameVersion = app.flags.gameVersion
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	w := app.stdout

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if path != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	show := func(key, value string) {
		if value == "" {
			value = SubtitleStyle.Render("(not set)")
		} else {
			value = valueStyle.Render(value)
		}
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render(key), value)
	}
	show("game_dir", cfg.GameDir)
	show("mods_dir", cfg.ModsRoot())
	show("game_version", cfg.GameVersion)
	show("install.policy", string(cfg.Install.Policy))
	show("install.workers", strconv.Itoa(cfg.Install.Workers))
	show("install.enable_on_install", strconv.FormatBool(cfg.Install.EnableOnInstall))
	show("updates.concurrency", strconv.Itoa(cfg.Updates.Concurrency))
	show("updates.timeout", cfg.Updates.Timeout.String())
	show("updates.cache_ttl", cfg.Updates.CacheTTL.String())
	show("updates.user_agent", cfg.Updates.UserAgent)
	show("bridge.host", cfg.Bridge.Host)
	show("bridge.port", strconv.Itoa(cfg.Bridge.Port))
	show("watch", strconv.FormatBool(cfg.Watch))
	show("log_level", string(cfg.LogLevel))
	return nil
}
