// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modkit/modkit/pkg/version"
)

func newVersionCompareCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version-compare <a> <b>",
		Short: "Compare two mod version strings",
		Long: `Compare two version strings the way modkit orders mod versions.

Versions are split into numeric and textual segments; separators
(. - _ and spaces) are ignored and anything after + is build metadata.
A missing segment sorts lowest, so 1.2.0 > 1.2, and at the same position a
number beats text, so 1.0.1 > 1.0.beta.`,
		Example: `  modkit version-compare 1.2.0 1.2
  modkit version-compare v2.0-rc1 2.0`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, b := version.Parse(args[0]), version.Parse(args[1])
			ord := version.Compare(a, b)
			sym := map[version.Ordering]string{
				version.Less:    "<",
				version.Equal:   "=",
				version.Greater: ">",
			}[ord]
			fmt.Fprintf(app.stdout, "%s %s %s\n", args[0], sym, args[1])
			if app.flags.verbose {
				fmt.Fprintln(app.stdout, VerboseStyle.Render(fmt.Sprintf("segments: [%s] vs [%s]",
					strings.Join(a.Segments(), " "), strings.Join(b.Segments(), " "))))
				if ord == version.Less {
					fmt.Fprintln(app.stdout, VerboseStyle.Render("bump: "+version.Bump(a, b).String()))
				}
			}
			return nil
		},
	}
}

func newGameVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "game-version <version> [other]",
		Short: "Parse a game release string",
		Long: `Split a game release string such as 0.95.1a-RC2 into major, minor,
patch and release candidate. With a second version, report the most
significant component in which the two differ.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed := make([]version.GameVersion, len(args))
			for i, arg := range args {
				gv, ok := version.ParseGameVersion(arg)
				if !ok {
					return app.fail(cmd, fmt.Errorf("unrecognised game version %q", arg))
				}
				parsed[i] = gv
				fmt.Fprintf(app.stdout, "%s: major=%s minor=%s patch=%s rc=%s\n",
					CmdStyle.Render(gv.String()), gv.Major, gv.Minor, orDash(gv.Patch), orDash(gv.RC))
			}
			if len(parsed) == 2 {
				fmt.Fprintf(app.stdout, "difference: %s\n", parsed[0].Diff(parsed[1]))
			}
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
