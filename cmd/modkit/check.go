// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modkit/modkit/internal/engine"
	"github.com/modkit/modkit/internal/updatecheck"
	"github.com/modkit/modkit/pkg/manifest"
)

func newCheckCommand(app *App) *cobra.Command {
	var updatesOnly bool
	cmd := &cobra.Command{
		Use:   "check [id...]",
		Short: "Check mods for updates",
		Long: `Fetch the remote version file of each mod and compare it with the
installed version. Without ids every installed mod is checked.

A mod whose version file cannot be fetched is reported as check-failed;
the other mods are still checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openSession(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			defer s.close()

			ids := make([]manifest.ModID, len(args))
			for i, a := range args {
				ids[i] = manifest.ModID(a)
			}

			ev, err := s.run(cmd.Context(), engine.Command{Kind: engine.CmdCheckUpdates, IDs: ids}, nil)
			if err != nil {
				return app.fail(cmd, operationFailure("check for updates", "", err))
			}

			outcomes := ev.Outcomes
			if updatesOnly {
				var filtered []updatecheck.Outcome
				for _, o := range outcomes {
					if o.HasUpdate() {
						filtered = append(filtered, o)
					}
				}
				outcomes = filtered
			}
			if len(outcomes) > 0 {
				renderOutcomes(app.stdout, outcomes)
			}
			fmt.Fprintln(app.stdout, SubtitleStyle.Render(ev.Summary))
			return nil
		},
	}
	cmd.Flags().BoolVar(&updatesOnly, "updates-only", false, "only list mods with an update available")
	return cmd
}

func newUpdateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "update <id>",
		Short: "Download and install a mod update",
		Long: `Check the mod for an update and, when one is available, download the
archive its version file points at and install it. The install is refused
unless the archive holds exactly the advertised version.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openSession(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			defer s.close()

			progress := newProgressPrinter(app.stdout, args[0], app.flags.verbose)
			ev, err := s.run(cmd.Context(), engine.Command{Kind: engine.CmdUpdate, ID: manifest.ModID(args[0])}, progress.print)
			if err != nil {
				return app.fail(cmd, operationFailure("update mod", args[0], err))
			}
			if ev.Mod == nil {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render(ev.Summary))
				return nil
			}
			fmt.Fprintln(app.stdout, SuccessStyle.Render("✓ ")+ev.Summary)
			return nil
		},
	}
}
