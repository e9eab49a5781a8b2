// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modkit/modkit/internal/registry"
)

// errConflicts is returned by `list --strict` when conflicts exist.
var errConflicts = errors.New("conflicts found")

func newListCommand(app *App) *cobra.Command {
	var (
		conflictsOnly bool
		strict        bool
	)
	cmd := &cobra.Command{
		Use:   "list [query]",
		Short: "List installed mods and their conflicts",
		Long: `List the mods in the mods directory.

The optional query matches mod ids and names, ignoring case and accents.
Scan problems such as unreadable manifests are printed as warnings.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openSession(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			defer s.close()

			renderDiagnostics(app.stderr, s.diags)

			snap := s.reg.Snapshot()
			if len(args) == 1 {
				snap = filterSnapshot(snap, args[0])
			}

			if !conflictsOnly {
				renderMods(app.stdout, snap)
			}
			if len(snap.Conflicts) > 0 {
				if !conflictsOnly {
					fmt.Fprintln(app.stdout)
				}
				fmt.Fprintln(app.stdout, WarningStyle.Render(fmt.Sprintf("%d conflicts", len(snap.Conflicts))))
				renderConflicts(app.stdout, snap.Conflicts)
				if strict {
					cmd.SilenceErrors = true
					cmd.SilenceUsage = true
					return &ExitError{Code: ExitConflicts, Err: errConflicts}
				}
			} else if conflictsOnly {
				fmt.Fprintln(app.stdout, SuccessStyle.Render("No conflicts"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&conflictsOnly, "conflicts", false, "only show conflicts")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit with status 3 when conflicts exist")
	return cmd
}

// filterSnapshot keeps the mods whose identity matches query and the
// conflicts that name them.
func filterSnapshot(snap registry.Snapshot, query string) registry.Snapshot {
	keep := make(map[string]bool)
	var mods []registry.InstalledMod
	for _, m := range snap.Mods {
		if m.Descriptor.Identity.Matches(query) {
			mods = append(mods, m)
			keep[m.Dir] = true
		}
	}
	var conflicts []registry.Conflict
	for _, c := range snap.Conflicts {
		if keep[c.Dir] {
			conflicts = append(conflicts, c)
		}
	}
	snap.Mods, snap.Conflicts = mods, conflicts
	return snap
}
