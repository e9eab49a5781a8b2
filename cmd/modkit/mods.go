// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modkit/modkit/internal/engine"
	"github.com/modkit/modkit/pkg/manifest"
)

func newUninstallCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <id>",
		Short: "Remove an installed mod",
		Long: `Remove every directory holding the mod with the given id and drop it
from the enabled list. Mods that depend on it are reported but kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openSession(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			defer s.close()

			id := manifest.ModID(args[0])
			dependents := s.reg.Dependents(id)

			ev, err := s.run(cmd.Context(), engine.Command{Kind: engine.CmdUninstall, ID: id}, nil)
			if err != nil {
				return app.fail(cmd, operationFailure("uninstall mod", args[0], err))
			}
			fmt.Fprintln(app.stdout, SuccessStyle.Render("✓ ")+ev.Summary)
			if len(dependents) > 0 {
				fmt.Fprintln(app.stderr, WarningStyle.Render("warning: ")+
					fmt.Sprintf("%s depended on %s", joinIDs(dependents), id))
			}
			return nil
		},
	}
}

// newEnableCommand builds `enable` or `disable`.
func newEnableCommand(app *App, enabled bool) *cobra.Command {
	use, short := "enable", "Enable mods"
	if !enabled {
		use, short = "disable", "Disable mods"
	}
	return &cobra.Command{
		Use:   use + " <id>...",
		Short: short,
		Long:  short + ` by updating enabled_mods.json. Mod directories are not touched.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openSession(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			defer s.close()

			var errs []error
			for _, arg := range args {
				ev, err := s.run(cmd.Context(), engine.Command{
					Kind:    engine.CmdSetEnabled,
					ID:      manifest.ModID(arg),
					Enabled: enabled,
				}, nil)
				if err != nil {
					errs = append(errs, operationFailure(use+" mod", arg, err))
					continue
				}
				fmt.Fprintln(app.stdout, SuccessStyle.Render("✓ ")+ev.Summary)
			}
			if len(errs) == 1 {
				return app.fail(cmd, errs[0])
			}
			return app.fail(cmd, errors.Join(errs...))
		},
	}
}

func joinIDs(ids []manifest.ModID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
