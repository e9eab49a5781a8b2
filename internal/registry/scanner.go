// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/modkit/modkit/internal/state"
	"github.com/modkit/modkit/pkg/manifest"
)

// DefaultMaxManifestSize bounds how much of a manifest or version file is read.
const DefaultMaxManifestSize = 1 << 20

type (
	// Scanner turns mod directories into InstalledMod values.
	Scanner struct {
		fs      afero.Fs
		maxSize int64
	}

	// ScannerOption configures a Scanner.
	ScannerOption func(*Scanner)

	// ScanResult carries exactly one of Mod or Diagnostic. A directory that
	// loads with warnings produces its Mod followed by one result per warning.
	ScanResult struct {
		Mod        *InstalledMod
		Diagnostic *Diagnostic
	}

	// LoadError is returned by Load when a directory is not a usable mod.
	LoadError struct {
		Diagnostic Diagnostic
	}
)

// Error implements the error interface.
func (e *LoadError) Error() string {
	return e.Diagnostic.String()
}

// Unwrap returns the diagnostic's cause.
func (e *LoadError) Unwrap() error { return e.Diagnostic.Cause }

// WithMaxManifestSize overrides DefaultMaxManifestSize.
func WithMaxManifestSize(n int64) ScannerOption {
	return func(s *Scanner) {
		s.maxSize = n
	}
}

// NewScanner creates a Scanner reading from fsys.
func NewScanner(fsys afero.Fs, opts ...ScannerOption) *Scanner {
	s := &Scanner{fs: fsys, maxSize: DefaultMaxManifestSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fs returns the scanner's filesystem.
func (s *Scanner) Fs() afero.Fs { return s.fs }

// Scan lazily yields one or more results per immediate subdirectory of root,
// in directory name order. Hidden directories and plain files are skipped.
// A failing directory never stops its siblings; cancelling ctx stops the
// iteration between directories.
func (s *Scanner) Scan(ctx context.Context, root string) iter.Seq[ScanResult] {
	return func(yield func(ScanResult) bool) {
		entries, err := afero.ReadDir(s.fs, root)
		if err != nil {
			yield(diagResult(Diagnostic{
				Severity: SeverityError,
				Code:     CodeUnreadable,
				Message:  "cannot read mod root",
				Path:     root,
				Cause:    err,
			}))
			return
		}

		enabled, err := state.New(s.fs, root).Enabled()
		if err != nil {
			if !yield(diagResult(Diagnostic{
				Severity: SeverityWarning,
				Code:     CodeStateInvalid,
				Message:  "enabled mods list is unreadable, treating every mod as disabled",
				Path:     filepath.Join(root, state.EnabledFileName),
				Cause:    err,
			})) {
				return
			}
		}

		for _, entry := range entries {
			if ctx.Err() != nil {
				return
			}
			if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}

			dir := filepath.Join(root, entry.Name())
			mod, warnings, err := s.Load(dir)
			if err != nil {
				var le *LoadError
				if errors.As(err, &le) {
					if !yield(diagResult(le.Diagnostic)) {
						return
					}
				}
				continue
			}
			mod.Enabled = enabled[mod.ID()]
			if !yield(ScanResult{Mod: &mod}) {
				return
			}
			for _, w := range warnings {
				if !yield(diagResult(w)) {
					return
				}
			}
		}
	}
}

// Load reads a single mod directory. It returns a *LoadError when the
// manifest is missing or invalid, and warnings for problems that do not
// prevent loading (an unusable local version file or install metadata).
func (s *Scanner) Load(dir string) (InstalledMod, []Diagnostic, error) {
	manifestPath := filepath.Join(dir, manifest.FileName)
	data, err := s.readLimited(manifestPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return InstalledMod{}, nil, &LoadError{Diagnostic: Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeManifestMissing,
			Message:  "directory has no " + manifest.FileName,
			Path:     dir,
			Cause:    err,
		}}
	case err != nil:
		return InstalledMod{}, nil, &LoadError{Diagnostic: Diagnostic{
			Severity: SeverityError,
			Code:     CodeUnreadable,
			Message:  "cannot read manifest",
			Path:     manifestPath,
			Cause:    err,
		}}
	}

	desc, err := manifest.Parse(data)
	if err != nil {
		return InstalledMod{}, nil, &LoadError{Diagnostic: Diagnostic{
			Severity: SeverityError,
			Code:     CodeManifestInvalid,
			Message:  err.Error(),
			Path:     manifestPath,
			Cause:    err,
		}}
	}

	var warnings []Diagnostic
	if vf, diag := s.loadVersionFile(dir); diag != nil {
		warnings = append(warnings, *diag)
	} else if vf != nil {
		desc.AttachVersionFile(vf)
	}

	meta, err := state.ReadMeta(s.fs, dir)
	if err != nil {
		warnings = append(warnings, Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeStateInvalid,
			Message:  "install metadata is unreadable",
			Path:     filepath.Join(dir, state.MetaFileName),
			Cause:    err,
		})
	}

	return InstalledMod{
		Descriptor: *desc,
		Path:       dir,
		Dir:        filepath.Base(dir),
		Meta:       meta,
	}, warnings, nil
}

// loadVersionFile follows version_files.csv to the local version file.
// Absence of the csv is not a problem; a listed but broken file is.
func (s *Scanner) loadVersionFile(dir string) (*manifest.VersionFile, *Diagnostic) {
	csvPath := filepath.Join(dir, filepath.FromSlash(manifest.VersionFilesCSV))
	data, err := s.readLimited(csvPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	warn := func(p, msg string, cause error) *Diagnostic {
		return &Diagnostic{Severity: SeverityWarning, Code: CodeVersionFileInvalid, Message: msg, Path: p, Cause: cause}
	}
	if err != nil {
		return nil, warn(csvPath, "cannot read version file list", err)
	}

	rel, err := manifest.LocateVersionFile(data)
	if errors.Is(err, manifest.ErrNoVersionFile) {
		return nil, nil
	}
	if err != nil {
		return nil, warn(csvPath, err.Error(), err)
	}

	vfPath := filepath.Join(dir, filepath.FromSlash(path.Clean(rel)))
	data, err = s.readLimited(vfPath)
	if err != nil {
		return nil, warn(vfPath, "cannot read version file", err)
	}
	vf, err := manifest.ParseVersionFile(data)
	if err != nil {
		return nil, warn(vfPath, err.Error(), err)
	}
	return vf, nil
}

func (s *Scanner) readLimited(p string) ([]byte, error) {
	f, err := s.fs.Open(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }() // read-only handle

	data, err := io.ReadAll(io.LimitReader(f, s.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", filepath.Base(p), s.maxSize)
	}
	return data, nil
}

func diagResult(d Diagnostic) ScanResult {
	return ScanResult{Diagnostic: &d}
}
