// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/modkit/modkit/internal/config"
	"github.com/modkit/modkit/internal/engine"
	"github.com/modkit/modkit/internal/issue"
	"github.com/modkit/modkit/internal/registry"
	"github.com/modkit/modkit/internal/updatecheck"
)

// guideStyle is the glamour style used for issue guides.
const guideStyle = "dark"

// fail renders err on stderr and returns an ExitError so that the command
// exits non-zero without Cobra printing the error a second time. With
// --verbose the error chain and the matching issue guide are included.
func (a *App) fail(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, a.flags.verbose))

	if a.flags.verbose {
		var ae *issue.ActionableError
		if errors.As(err, &ae) {
			if guide := ae.Guide(); guide != nil {
				if rendered, renderErr := guide.Render(guideStyle); renderErr == nil {
					fmt.Fprint(a.stderr, rendered)
				}
			}
		}
	}

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: exitCodeFor(err), Err: err}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, ErrModsDirNotSet),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, engine.ErrInvalidCommand):
		return ExitUsage
	default:
		return ExitFailure
	}
}

// newTable returns a table writer in the CLI's house style.
func newTable(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(header)
	t.Style().Box = table.StyleBoxLight
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	return t
}

// renderMods writes one row per mod directory, listing the conflict kinds
// each directory is involved in.
func renderMods(w io.Writer, snap registry.Snapshot) {
	byDir := make(map[string][]string)
	for _, c := range snap.Conflicts {
		byDir[c.Dir] = append(byDir[c.Dir], string(c.Kind))
	}

	t := newTable(w, table.Row{"ID", "Name", "Version", "Game", "Enabled", "Directory", "Remote", "Conflicts"})
	for _, m := range snap.Mods {
		enabled := ""
		if m.Enabled {
			enabled = "yes"
		}
		remote := ""
		if m.Remote != nil && !m.Remote.Version.IsZero() {
			remote = m.Remote.Version.String()
		}
		t.AppendRow(table.Row{
			m.ID(),
			m.Descriptor.DisplayName(),
			m.Descriptor.Version,
			m.Descriptor.GameVersion,
			enabled,
			m.Dir,
			remote,
			strings.Join(byDir[m.Dir], ", "),
		})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d mods", len(snap.Mods))})
	t.Render()
}

func renderConflicts(w io.Writer, conflicts []registry.Conflict) {
	t := newTable(w, table.Row{"Kind", "ID", "Directory", "With", "Detail"})
	for _, c := range conflicts {
		t.AppendRow(table.Row{c.Kind, c.ID, c.Dir, strings.Join(c.Others, ", "), c.Detail})
	}
	t.Render()
}

func renderOutcomes(w io.Writer, outcomes []updatecheck.Outcome) {
	t := newTable(w, table.Row{"ID", "Installed", "Remote", "Status", "Download"})
	for _, o := range outcomes {
		remote := ""
		if !o.Remote.IsZero() {
			remote = o.Remote.String()
		}
		t.AppendRow(table.Row{o.ID, o.Local, remote, o.Summary(), o.DownloadURL})
	}
	t.Render()
}

// renderDiagnostics prints scan diagnostics as warnings.
func renderDiagnostics(w io.Writer, diags []registry.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintln(w, WarningStyle.Render("warning: ")+d.String())
	}
}
