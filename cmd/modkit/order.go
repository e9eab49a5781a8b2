// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modkit/modkit/internal/dag"
	"github.com/modkit/modkit/internal/issue"
)

func newOrderCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "order",
		Short: "Print the load order of enabled mods",
		Long: `Print the enabled mods with every dependency before the mods that
need it. Ties are broken by mod id. Disabled and missing dependencies are
ignored here; 'modkit list --conflicts' reports them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openSession(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			defer s.close()

			order, err := s.reg.LoadOrder()
			if err != nil {
				ec := issue.NewErrorContext().
					WithOperation("compute load order").
					Wrap(err)
				var cycle *dag.CycleError
				if errors.As(err, &cycle) {
					ec = ec.WithIssue(issue.DependencyCycleId).
						WithSuggestion("Disable one of the mods on the cycle")
				}
				return app.fail(cmd, ec.BuildError())
			}

			if len(order) == 0 {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("No enabled mods"))
				return nil
			}
			for i, m := range order {
				fmt.Fprintf(app.stdout, "%3d. %s %s\n", i+1, CmdStyle.Render(string(m.ID())), m.Descriptor.Version)
			}
			return nil
		},
	}
}
