// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/modkit/modkit/internal/engine"
	"github.com/modkit/modkit/internal/installer"
)

func newInstallCommand(app *App) *cobra.Command {
	var (
		policy string
		format string
		enable bool
	)
	cmd := &cobra.Command{
		Use:   "install <archive>...",
		Short: "Install mods from archives",
		Long: `Install one or more mod archives (zip, rar, tar, tar.gz or tar.xz).

Each archive is extracted into a staging directory, checked for a
mod_info.json and moved into the mods directory in one step. An archive
that fails leaves the mods directory untouched. Archives are installed
concurrently, up to install.workers at a time.

Replace policies decide what happens when the mod is already installed:
  always-replace      overwrite the installed copy
  replace-if-newer    overwrite only with a newer version (default)
  reject              never overwrite`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := installer.ParsePolicy(policy); err != nil {
				return app.fail(cmd, err)
			}
			if _, err := installer.ParseFormat(format); err != nil {
				return app.fail(cmd, err)
			}

			s, err := app.openSession(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			defer s.close()

			out := &syncWriter{w: app.stdout}
			errs := make([]error, len(args))
			var g errgroup.Group
			for i, archive := range args {
				g.Go(func() error {
					name := filepath.Base(archive)
					ev, err := s.run(cmd.Context(), engine.Command{
						Kind:    engine.CmdInstall,
						Archive: archive,
						Format:  format,
						Policy:  policy,
						Enable:  enable,
					}, newProgressPrinter(out, name, app.flags.verbose).print)
					if err != nil {
						fmt.Fprintln(out, ErrorStyle.Render("✗ ")+name+": "+err.Error())
						errs[i] = operationFailure("install mod", archive, err)
						return nil
					}
					fmt.Fprintln(out, SuccessStyle.Render("✓ ")+ev.Summary)
					return nil
				})
			}
			_ = g.Wait()

			if err := errors.Join(errs...); err != nil {
				if len(args) == 1 {
					return app.fail(cmd, errs[0])
				}
				return app.fail(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&policy, "policy", "", "replace policy: always-replace, replace-if-newer or reject (default from config)")
	cmd.Flags().StringVar(&format, "format", "", "archive format when the content cannot be sniffed: zip, rar, tar, tar.gz or tar.xz")
	cmd.Flags().BoolVar(&enable, "enable", false, "enable freshly installed mods")
	return cmd
}

// progressPrinter prints one line per stage of an operation. In verbose
// mode every progress event is printed.
type progressPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	label   string
	verbose bool
	stage   string
}

func newProgressPrinter(w io.Writer, label string, verbose bool) *progressPrinter {
	return &progressPrinter{w: w, label: label, verbose: verbose}
}

func (p *progressPrinter) print(ev engine.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev.Stage == p.stage && !p.verbose {
		return
	}
	p.stage = ev.Stage

	line := p.label + ": " + ev.Stage
	if ev.Total > 0 {
		line += fmt.Sprintf(" %d%%", ev.Done*100/ev.Total)
	}
	if p.verbose && ev.Entry != "" {
		line += " " + ev.Entry
	}
	fmt.Fprintln(p.w, VerboseStyle.Render(line))
}
