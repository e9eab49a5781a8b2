// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/modkit/modkit/internal/installer"
	"github.com/modkit/modkit/internal/registry"
	"github.com/modkit/modkit/internal/updatecheck"
)

func (e *Engine) install(ctx context.Context, base Event, cmd Command) (Event, error) {
	opts := installer.Options{
		Policy: cmp.Or(installer.Policy(cmd.Policy), e.policy),
		Enable: cmd.Enable || e.enable,
		OpID:   base.Op,
	}
	if cmd.Format != "" {
		opts.FormatHint, _ = installer.ParseFormat(cmd.Format) // checked by Validate
	}
	mod, err := e.installFrom(ctx, base, installer.FromFile(cmd.Archive), opts)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Summary: fmt.Sprintf("installed %s %s into %s", mod.ID(), mod.Descriptor.Version, mod.Dir),
		Mod:     &mod,
	}, nil
}

func (e *Engine) installFrom(ctx context.Context, base Event, src installer.Source, opts installer.Options) (registry.InstalledMod, error) {
	opts.Progress = func(p installer.Progress) {
		ev := base
		ev.Kind, ev.Stage, ev.Done, ev.Total, ev.Entry = EventProgress, string(p.Stage), p.Done, p.Total, p.Entry
		e.emit(ev)
	}
	mod, err := e.pool.Install(ctx, src, opts)
	if e.metrics != nil {
		e.metrics.InstallFinished(string(installer.KindOf(err)))
	}
	return mod, err
}

// update checks the mod, downloads its direct download into a temporary
// file and installs it, requiring the archive to hold the advertised version.
func (e *Engine) update(ctx context.Context, base Event, cmd Command) (Event, error) {
	mod, ok := e.reg.Get(cmd.ID)
	if !ok {
		return Event{}, &registry.NotFoundError{ID: cmd.ID}
	}

	outcome := e.checker.Check(ctx, mod)
	e.recordOutcome(outcome)
	switch {
	case outcome.Kind == updatecheck.OutcomeCheckFailed:
		return Event{}, outcome.Err
	case !outcome.HasUpdate():
		return Event{Summary: fmt.Sprintf("%s: %s", cmd.ID, outcome.Summary()), Outcomes: []updatecheck.Outcome{outcome}}, nil
	case outcome.DownloadURL == "":
		return Event{}, fmt.Errorf("%w: %s", ErrNoDownload, cmd.ID)
	}

	tmp, err := os.CreateTemp(e.tempDir, "modkit-update-*")
	if err != nil {
		return Event{}, fmt.Errorf("creating download file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	res, err := e.checker.Download(ctx, outcome.DownloadURL, tmp, func(p updatecheck.DownloadProgress) {
		ev := base
		ev.Kind, ev.Stage, ev.Done, ev.Total = EventProgress, StageDownload, p.Done, p.Total
		e.emit(ev)
	})
	if err != nil {
		return Event{}, err
	}
	e.logger.Debug("update downloaded", "id", cmd.ID, "file", res.FileName, "bytes", res.Bytes, "sha256", res.SHA256)

	src := installer.FromReaderAt(res.FileName, tmp, res.Bytes)
	installed, err := e.installFrom(ctx, base, src, installer.Options{
		FormatHint:    installer.FormatFromName(res.FileName),
		Policy:        installer.PolicyReplaceIfNewer,
		ExpectVersion: outcome.Remote,
		OpID:          base.Op,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		Summary:  fmt.Sprintf("updated %s %s -> %s", cmd.ID, outcome.Local, installed.Descriptor.Version),
		Mod:      &installed,
		Outcomes: []updatecheck.Outcome{outcome},
	}, nil
}

func (e *Engine) uninstall(ctx context.Context, cmd Command) (Event, error) {
	removed, err := e.reg.Remove(ctx, cmd.ID)
	if err != nil {
		return Event{}, err
	}
	return Event{Summary: fmt.Sprintf("uninstalled %s (%d %s)", cmd.ID, len(removed), plural(len(removed), "directory", "directories"))}, nil
}

// checkUpdates checks the winning entry of every requested mod and records
// what it learns in the registry.
func (e *Engine) checkUpdates(ctx context.Context, base Event, cmd Command) (Event, error) {
	var mods []registry.InstalledMod
	winners := registry.Winners(e.reg.Snapshot().Mods)
	if len(cmd.IDs) == 0 {
		mods = winners
	} else {
		for _, id := range cmd.IDs {
			i := slices.IndexFunc(winners, func(m registry.InstalledMod) bool { return m.ID() == id })
			if i < 0 {
				return Event{}, &registry.NotFoundError{ID: id}
			}
			mods = append(mods, winners[i])
		}
	}

	var done int64
	total := int64(len(mods))
	outcomes := e.checker.CheckAll(ctx, mods, func(_ int, o updatecheck.Outcome) {
		done++
		e.recordOutcome(o)
		ev := base
		ev.Kind, ev.Stage, ev.Done, ev.Total, ev.Entry = EventProgress, StageCheck, done, total, string(o.ID)
		e.emit(ev)
	})
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}

	updates := 0
	for _, o := range outcomes {
		if o.HasUpdate() {
			updates++
		}
	}
	return Event{
		Summary:  fmt.Sprintf("checked %d %s, %d %s available", len(mods), plural(len(mods), "mod", "mods"), updates, plural(updates, "update", "updates")),
		Outcomes: outcomes,
	}, nil
}

func (e *Engine) setEnabled(cmd Command) (Event, error) {
	if err := e.reg.SetEnabled(cmd.ID, cmd.Enabled); err != nil {
		return Event{}, err
	}
	verb := "disabled"
	if cmd.Enabled {
		verb = "enabled"
	}
	return Event{Summary: fmt.Sprintf("%s %s", verb, cmd.ID)}, nil
}

// recordOutcome stores a successful check in the registry.
func (e *Engine) recordOutcome(o updatecheck.Outcome) {
	if e.metrics != nil {
		e.metrics.UpdateChecked(string(o.Kind))
	}
	if o.Kind == updatecheck.OutcomeCheckFailed || o.Kind == updatecheck.OutcomeNoChecker {
		return
	}
	if err := e.reg.SetRemote(o.ID, o.RemoteInfo()); err != nil {
		e.logger.Debug("could not record remote version", "id", o.ID, "err", err)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
