// SPDX-License-Identifier: MPL-2.0

package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/titanous/json5"

	"github.com/modkit/modkit/pkg/manifest"
)

const (
	// EnabledFileName is the game's enabled-mods list, stored in the mod root.
	EnabledFileName = "enabled_mods.json"
	// MetaFileName is the install metadata file written into each installed mod.
	MetaFileName = ".modkit.json"
)

type (
	// Clock supplies the current time for install metadata.
	Clock interface {
		Now() time.Time
	}

	// InstallMeta records how a mod directory came to exist.
	InstallMeta struct {
		InstalledAt time.Time `json:"installedAt"`
		Source      string    `json:"source,omitempty"`
		Version     string    `json:"version,omitempty"`
	}

	// Store reads and writes state files under one mod root.
	Store struct {
		fs    afero.Fs
		root  string
		clock Clock
		// mu serializes read-modify-write cycles on the enabled file.
		mu sync.Mutex
	}

	// Option configures a Store.
	Option func(*Store)

	enabledFile struct {
		EnabledMods []string `json:"enabledMods"`
	}

	systemClock struct{}
)

// ErrCorruptState is returned when a state file exists but cannot be decoded.
var ErrCorruptState = errors.New("corrupt state file")

func (systemClock) Now() time.Time { return time.Now() }

// WithClock overrides the clock used for install timestamps.
func WithClock(c Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// New creates a Store rooted at root on fsys.
func New(fsys afero.Fs, root string, opts ...Option) *Store {
	s := &Store{fs: fsys, root: root, clock: systemClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fs returns the filesystem the store operates on.
func (s *Store) Fs() afero.Fs { return s.fs }

// Root returns the mod root.
func (s *Store) Root() string { return s.root }

// Now returns the store clock's current time.
func (s *Store) Now() time.Time { return s.clock.Now() }

// Enabled returns the set of enabled mod ids. A missing file is an empty set.
func (s *Store) Enabled() (map[manifest.ModID]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.readEnabled()
	if err != nil {
		return nil, err
	}
	set := make(map[manifest.ModID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// SetEnabled adds or removes id from the enabled file. Ids of mods that are
// not installed are preserved.
func (s *Store) SetEnabled(id manifest.ModID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.readEnabled()
	if err != nil {
		return err
	}

	has := slices.Contains(ids, id)
	switch {
	case enabled && !has:
		ids = append(ids, id)
	case !enabled && has:
		ids = slices.DeleteFunc(ids, func(x manifest.ModID) bool { return x == id })
	default:
		return nil
	}
	return s.writeEnabled(ids)
}

// ReplaceEnabled overwrites the enabled file with exactly ids.
func (s *Store) ReplaceEnabled(ids []manifest.ModID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeEnabled(slices.Clone(ids))
}

func (s *Store) enabledPath() string {
	return filepath.Join(s.root, EnabledFileName)
}

func (s *Store) readEnabled() ([]manifest.ModID, error) {
	data, err := afero.ReadFile(s.fs, s.enabledPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", EnabledFileName, err)
	}

	var doc enabledFile
	if err := json5.Unmarshal(manifest.Normalize(data), &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptState, EnabledFileName, err)
	}

	ids := make([]manifest.ModID, 0, len(doc.EnabledMods))
	for _, raw := range doc.EnabledMods {
		id := manifest.ModID(raw)
		if id.Validate() != nil || slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) writeEnabled(ids []manifest.ModID) error {
	slices.Sort(ids)
	doc := enabledFile{EnabledMods: make([]string, len(ids))}
	for i, id := range ids {
		doc.EnabledMods[i] = string(id)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", EnabledFileName, err)
	}
	if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("creating mod root: %w", err)
	}
	return WriteFileAtomic(s.fs, s.enabledPath(), append(data, '\n'))
}

// ReadMeta reads dir/.modkit.json. It returns nil and no error when the
// file does not exist.
func (s *Store) ReadMeta(dir string) (*InstallMeta, error) {
	return ReadMeta(s.fs, dir)
}

// ReadMeta reads dir/.modkit.json from fsys. It returns nil and no error when
// the file does not exist.
func ReadMeta(fsys afero.Fs, dir string) (*InstallMeta, error) {
	data, err := afero.ReadFile(fsys, filepath.Join(dir, MetaFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", MetaFileName, err)
	}
	var meta InstallMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptState, MetaFileName, err)
	}
	return &meta, nil
}

// WriteMeta writes dir/.modkit.json, stamping InstalledAt from the store clock
// when it is zero.
func (s *Store) WriteMeta(dir string, meta InstallMeta) error {
	if meta.InstalledAt.IsZero() {
		meta.InstalledAt = s.clock.Now().UTC()
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", MetaFileName, err)
	}
	return WriteFileAtomic(s.fs, filepath.Join(dir, MetaFileName), append(data, '\n'))
}

// WriteFileAtomic writes data to a temp file next to path and renames it into place.
func WriteFileAtomic(fsys afero.Fs, path string, data []byte) (err error) {
	dir, base := filepath.Split(path)
	tmp, err := afero.TempFile(fsys, dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", base, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = fsys.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", base, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", base, err)
	}
	if err = fsys.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", base, err)
	}
	return nil
}
