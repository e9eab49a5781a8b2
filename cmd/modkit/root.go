// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "modkit",
		Short: "A mod manager for moddable games",
		Long: TitleStyle.Render("modkit") + SubtitleStyle.Render(" - A mod manager for moddable games") + `

modkit keeps track of the mods in a game's mods folder: it reads every
mod_info.json, resolves duplicates, missing dependencies and game version
mismatches, installs archives atomically and checks for updates.

` + SubtitleStyle.Render("Quick Start:") + `
  1. modkit config init                  Create a config file
  2. Set game_dir in the config file     Or pass --mods-dir
  3. modkit list                         See what is installed

` + SubtitleStyle.Render("Examples:") + `
  modkit install ./LazyLib.zip           Install an archive
  modkit check                           Check every mod for updates
  modkit update lw_lazylib               Download and install an update
  modkit serve                           Start the bridge for UI clients`,
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	flags.StringVar(&app.flags.configFile, "config", "", "config file (default is "+configPathHint()+")")
	flags.StringVar(&app.flags.modsDir, "mods-dir", "", "mods directory (overrides config)")
	flags.StringVar(&app.flags.gameVersion, "game-version", "", "installed game version (overrides config)")

	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.AddCommand(
		newListCommand(app),
		newInstallCommand(app),
		newUninstallCommand(app),
		newEnableCommand(app, true),
		newEnableCommand(app, false),
		newCheckCommand(app),
		newUpdateCommand(app),
		newOrderCommand(app),
		newServeCommand(app),
		newConfigCommand(app),
		newVersionCompareCommand(app),
		newGameVersionCommand(app),
	)
	return rootCmd
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	rootCmd := NewRootCommand(app)

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(ExitFailure)
	}
}
