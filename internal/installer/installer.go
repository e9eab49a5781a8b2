// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/modkit/modkit/internal/registry"
	"github.com/modkit/modkit/internal/state"
	"github.com/modkit/modkit/pkg/manifest"
	"github.com/modkit/modkit/pkg/version"
)

// StagingDirName is the directory below the mod root that holds in-flight
// installs. The scanner ignores it like every other dot directory.
const StagingDirName = ".modkit-staging"

// Install stages, reported through Progress.
const (
	StageDetect  Stage = "detect"
	StageExtract Stage = "extract"
	StageVerify  Stage = "verify"
	StageCommit  Stage = "commit"
)

// Transaction outcomes.
const (
	TxPending    TxOutcome = "pending"
	TxCommitted  TxOutcome = "committed"
	TxRolledBack TxOutcome = "rolled-back"
)

type (
	// Installer installs archives into a registry's mod root.
	Installer struct {
		reg      *registry.Registry
		fs       afero.Fs
		logger   *log.Logger
		maxBytes int64
	}

	// Option configures an Installer.
	Option func(*Installer)

	// Options controls a single install.
	Options struct {
		// FormatHint is used only when the content is not recognised.
		FormatHint Format
		// Policy defaults to PolicyReplaceIfNewer.
		Policy   Policy
		Progress ProgressFunc
		// ExpectVersion, when set, must equal the archive's mod version.
		ExpectVersion version.Version
		// Enable marks a fresh install as enabled. Replacements keep the
		// enabled state of the mod they replace.
		Enable bool
		// OpID names the staging directory; a random id is used when empty.
		OpID string
	}

	// Stage names a phase of an install.
	Stage string

	// Progress is one progress report. During extraction Done and Total count
	// archive bytes consumed.
	Progress struct {
		Op     string
		Source string
		Stage  Stage
		Done   int64
		Total  int64
		Entry  string
	}

	// ProgressFunc receives progress reports on the installing goroutine.
	ProgressFunc func(Progress)

	// TxOutcome is the final state of a Transaction.
	TxOutcome string

	// Transaction tracks one install from staging to promotion.
	Transaction struct {
		Op      string
		Root    string
		Staging string
		Target  string
		Outcome TxOutcome
	}

	countingReaderAt struct {
		r io.ReaderAt
		n atomic.Int64
	}
)

// WithLogger sets the installer logger.
func WithLogger(l *log.Logger) Option {
	return func(in *Installer) {
		in.logger = l
	}
}

// WithMaxExtractBytes caps the uncompressed size of a single archive.
func WithMaxExtractBytes(n int64) Option {
	return func(in *Installer) {
		in.maxBytes = n
	}
}

// New creates an Installer that commits into reg. Files are written through
// the filesystem of reg's scanner.
func New(reg *registry.Registry, opts ...Option) *Installer {
	in := &Installer{
		reg:      reg,
		fs:       reg.Scanner().Fs(),
		logger:   log.NewWithOptions(os.Stderr, log.Options{Prefix: "installer"}),
		maxBytes: DefaultMaxExtractBytes,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Registry returns the registry installs commit into.
func (in *Installer) Registry() *registry.Registry { return in.reg }

// Install extracts src, locates and parses its manifest and commits the mod
// into the registry according to opts.Policy. On any error the mod root is
// left as it was and the staging directory is removed.
func (in *Installer) Install(ctx context.Context, src Source, opts Options) (registry.InstalledMod, error) {
	policy, err := ParsePolicy(string(opts.Policy))
	if err != nil {
		return registry.InstalledMod{}, err
	}
	root := in.reg.Root()
	tx := &Transaction{
		Op:      cmp.Or(opts.OpID, uuid.NewString()),
		Root:    root,
		Outcome: TxPending,
	}
	tx.Staging = filepath.Join(root, StagingDirName, tx.Op)

	report := func(p Progress) {
		if opts.Progress != nil {
			p.Op, p.Source = tx.Op, src.Name
			opts.Progress(p)
		}
	}

	r, size, closer, err := src.open()
	if err != nil {
		return registry.InstalledMod{}, err
	}
	defer func() { _ = closer.Close() }() // read-only

	report(Progress{Stage: StageDetect, Total: size})
	format, err := Detect(r, size, opts.FormatHint)
	if err != nil {
		return registry.InstalledMod{}, fmt.Errorf("%s: %w", src.Name, err)
	}
	ext, err := ExtractorFor(format)
	if err != nil {
		return registry.InstalledMod{}, err
	}

	defer in.cleanup(tx)
	if err := in.fs.MkdirAll(tx.Staging, 0o755); err != nil {
		return registry.InstalledMod{}, fsError("mkdir", tx.Staging, err)
	}

	in.logger.Debug("extracting", "op", tx.Op, "source", src.Name, "format", format, "size", size)
	counted := &countingReaderAt{r: r}
	st := &stager{fs: in.fs, dir: tx.Staging, maxBytes: in.maxBytes}
	err = ext.Extract(ctx, counted, size, func(e Entry) error {
		if err := st.emit(e); err != nil {
			return err
		}
		report(Progress{Stage: StageExtract, Done: min(counted.n.Load(), size), Total: size, Entry: e.Name})
		return nil
	})
	if err != nil {
		return registry.InstalledMod{}, fmt.Errorf("%s: %w", src.Name, err)
	}
	for _, name := range st.skipped {
		in.logger.Warn("skipped link entry", "op", tx.Op, "entry", name)
	}
	if err := ctx.Err(); err != nil {
		return registry.InstalledMod{}, err
	}

	report(Progress{Stage: StageVerify, Done: size, Total: size})
	modDir, err := locateManifest(in.fs, tx.Staging)
	if err != nil {
		return registry.InstalledMod{}, fmt.Errorf("%s: %w", src.Name, err)
	}
	staged, warnings, err := in.reg.Scanner().Load(modDir)
	if err != nil {
		return registry.InstalledMod{}, fmt.Errorf("%s: %w", src.Name, err)
	}
	for _, w := range warnings {
		in.logger.Warn("staged mod", "op", tx.Op, "warning", w.String())
	}
	id := staged.ID()
	desc := staged.Descriptor
	if want := opts.ExpectVersion; !want.IsZero() && !desc.Version.Equal(want) && !desc.CheckedVersion().Equal(want) {
		return registry.InstalledMod{}, &VersionMismatchError{ID: id, Expected: want, Actual: desc.Version}
	}

	meta := state.InstallMeta{Source: src.Name, Version: desc.Version.String()}
	if err := in.reg.Store().WriteMeta(modDir, meta); err != nil {
		return registry.InstalledMod{}, fsError("write", filepath.Join(modDir, state.MetaFileName), err)
	}

	report(Progress{Stage: StageCommit, Done: size, Total: size})
	return in.reg.Commit(ctx, func(current []registry.InstalledMod) (registry.InstalledMod, error) {
		existing, found := winner(current, id)
		if found && !policy.allows(desc.Version, existing.Descriptor.Version) {
			return registry.InstalledMod{}, &PolicyError{ID: id, Policy: policy, Staged: desc.Version, Existing: existing.Descriptor.Version}
		}

		tx.Target = filepath.Join(root, string(id))
		enabled := opts.Enable
		if found {
			tx.Target, enabled = existing.Path, existing.Enabled
		} else if ok, _ := afero.Exists(in.fs, tx.Target); ok {
			return registry.InstalledMod{}, fsError("install", tx.Target, fs.ErrExist)
		}

		// Last checkpoint: promotion below is never interrupted.
		if err := ctx.Err(); err != nil {
			return registry.InstalledMod{}, err
		}
		if err := in.promote(tx, modDir); err != nil {
			return registry.InstalledMod{}, err
		}
		if !found && enabled {
			if err := in.reg.Store().SetEnabled(id, true); err != nil {
				in.logger.Warn("could not enable installed mod", "id", id, "err", err)
				enabled = false
			}
		}

		installed := staged
		installed.Path = tx.Target
		installed.Dir = filepath.Base(tx.Target)
		installed.Enabled = enabled
		if m, err := state.ReadMeta(in.fs, tx.Target); err == nil {
			installed.Meta = m
		}
		in.logger.Info("installed", "id", id, "version", desc.Version, "dir", installed.Dir, "replaced", found)
		return installed, nil
	})
}

// promote moves the staged mod directory onto tx.Target, keeping the previous
// installation aside until the move succeeds.
func (in *Installer) promote(tx *Transaction, staged string) error {
	backup := ""
	if ok, _ := afero.Exists(in.fs, tx.Target); ok {
		backup = tx.Staging + ".old"
		if err := in.fs.Rename(tx.Target, backup); err != nil {
			return fsError("backup", tx.Target, err)
		}
	}

	if err := in.fs.Rename(staged, tx.Target); err != nil {
		if backup != "" {
			if rbErr := in.fs.Rename(backup, tx.Target); rbErr != nil {
				in.logger.Error("could not restore previous installation", "target", tx.Target, "backup", backup, "err", rbErr)
			}
		}
		return fsError("promote", tx.Target, err)
	}
	tx.Outcome = TxCommitted

	if backup != "" {
		if err := in.fs.RemoveAll(backup); err != nil {
			in.logger.Warn("could not remove replaced installation", "path", backup, "err", err)
		}
	}
	return nil
}

// cleanup removes the staging directory, and its parent once empty.
func (in *Installer) cleanup(tx *Transaction) {
	if tx.Outcome == TxPending {
		tx.Outcome = TxRolledBack
	}
	if err := in.fs.RemoveAll(tx.Staging); err != nil {
		in.logger.Warn("could not remove staging directory", "path", tx.Staging, "err", err)
	}
	parent := filepath.Dir(tx.Staging)
	if empty, err := afero.IsEmpty(in.fs, parent); err == nil && empty {
		_ = in.fs.Remove(parent)
	}
	in.logger.Debug("install finished", "op", tx.Op, "outcome", tx.Outcome)
}

func winner(mods []registry.InstalledMod, id manifest.ModID) (registry.InstalledMod, bool) {
	for _, m := range registry.Winners(mods) {
		if m.ID() == id {
			return m, true
		}
	}
	return registry.InstalledMod{}, false
}

func (c *countingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n, err := c.r.ReadAt(p, off)
	c.n.Add(int64(n))
	return n, err
}
