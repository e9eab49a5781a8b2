// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/modkit/modkit/internal/state"
	"github.com/modkit/modkit/pkg/manifest"
	"github.com/modkit/modkit/pkg/version"
)

type (
	// Registry is the authoritative inventory of installed mods under one root.
	// It is safe for concurrent use.
	Registry struct {
		root    string
		scanner *Scanner
		store   *state.Store
		logger  *log.Logger

		// observer is called with every post-mutation snapshot while mu is held.
		observer func(Snapshot)

		mu          sync.Mutex
		game        version.Version
		mods        []InstalledMod
		conflicts   []Conflict
		diagnostics []Diagnostic
		generation  uint64
	}

	// Option configures a Registry.
	Option func(*Registry)

	// CommitFunc stages a change while the registry is locked. It receives a
	// copy of the current entries and returns the entry to insert. An entry
	// with the same Path as an existing one replaces it.
	CommitFunc func(current []InstalledMod) (InstalledMod, error)
)

// WithLogger sets the registry logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithGameVersion sets the initial game version.
func WithGameVersion(v version.Version) Option {
	return func(r *Registry) {
		r.game = v
	}
}

// WithObserver registers fn to receive every post-mutation snapshot. fn runs
// with the registry locked and must not call back into the registry.
func WithObserver(fn func(Snapshot)) Option {
	return func(r *Registry) {
		r.observer = fn
	}
}

// New creates an empty Registry for root. Call Rescan to populate it.
func New(root string, scanner *Scanner, store *state.Store, opts ...Option) *Registry {
	r := &Registry{
		root:    root,
		scanner: scanner,
		store:   store,
		logger:  log.NewWithOptions(os.Stderr, log.Options{Prefix: "registry"}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Root returns the mod root.
func (r *Registry) Root() string { return r.root }

// Scanner returns the scanner used for rescans.
func (r *Registry) Scanner() *Scanner { return r.scanner }

// Store returns the state store.
func (r *Registry) Store() *state.Store { return r.store }

// SetObserver replaces the snapshot observer, see WithObserver. A nil fn
// removes it.
func (r *Registry) SetObserver(fn func(Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = fn
}

// rescanAttempts bounds the unlocked scans Rescan tries before it scans with
// the registry locked.
const rescanAttempts = 3

// Rescan replaces the inventory with a fresh scan of the root. Remote info
// gathered earlier is carried over for directories that still hold the same
// mod. It returns the scan diagnostics.
//
// The scan runs unlocked. If another mutation lands while it runs, the scan
// may predate it and is repeated; after rescanAttempts the final scan holds
// the lock, so the result always reflects every completed mutation.
func (r *Registry) Rescan(ctx context.Context) ([]Diagnostic, error) {
	for range rescanAttempts {
		r.mu.Lock()
		gen := r.generation
		r.mu.Unlock()

		mods, diags, err := r.scan(ctx)
		if err != nil {
			return diags, err
		}

		r.mu.Lock()
		if r.generation == gen {
			defer r.mu.Unlock()
			return r.replaceLocked(mods, diags), nil
		}
		r.mu.Unlock()
		r.logger.Debug("registry changed during rescan, scanning again")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	mods, diags, err := r.scan(ctx)
	if err != nil {
		return diags, err
	}
	return r.replaceLocked(mods, diags), nil
}

func (r *Registry) scan(ctx context.Context) ([]InstalledMod, []Diagnostic, error) {
	var (
		mods  []InstalledMod
		diags []Diagnostic
	)
	for res := range r.scanner.Scan(ctx, r.root) {
		switch {
		case res.Mod != nil:
			mods = append(mods, *res.Mod)
		case res.Diagnostic != nil:
			diags = append(diags, *res.Diagnostic)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, diags, fmt.Errorf("rescan interrupted: %w", err)
	}
	return mods, diags, nil
}

func (r *Registry) replaceLocked(mods []InstalledMod, diags []Diagnostic) []Diagnostic {
	previous := make(map[string]InstalledMod, len(r.mods))
	for _, m := range r.mods {
		previous[m.Path] = m
	}
	for i, m := range mods {
		if old, ok := previous[m.Path]; ok && old.ID() == m.ID() && old.Remote != nil {
			remote := *old.Remote
			mods[i].Remote = &remote
		}
	}

	r.mods = mods
	r.diagnostics = diags
	r.mutatedLocked()
	r.logger.Debug("rescan complete", "mods", len(mods), "diagnostics", len(diags), "conflicts", len(r.conflicts))
	return diags
}

// Snapshot returns a copy of the current state.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Get returns the winning entry for id.
func (r *Registry) Get(id manifest.ModID) (InstalledMod, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.winnerLocked(id)
	if !ok {
		return InstalledMod{}, false
	}
	return m.Clone(), true
}

// GameVersion returns the game version conflicts are resolved against.
func (r *Registry) GameVersion() version.Version {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game
}

// SetGameVersion changes the game version and re-resolves.
func (r *Registry) SetGameVersion(v version.Version) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.game = v
	r.mutatedLocked()
}

// SetEnabled persists the enabled flag for id and updates every entry with
// that id. Nothing on disk other than enabled_mods.json changes.
func (r *Registry) SetEnabled(id manifest.ModID, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.winnerLocked(id); !ok {
		return &NotFoundError{ID: id}
	}
	if err := r.store.SetEnabled(id, enabled); err != nil {
		return fmt.Errorf("saving enabled state for %s: %w", id, err)
	}
	for i := range r.mods {
		if r.mods[i].ID() == id {
			r.mods[i].Enabled = enabled
		}
	}
	r.mutatedLocked()
	return nil
}

// SetRemote records what an update check learned about id.
func (r *Registry) SetRemote(id manifest.ModID, info RemoteInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	for i := range r.mods {
		if r.mods[i].ID() == id {
			ri := info
			r.mods[i].Remote = &ri
			found = true
		}
	}
	if !found {
		return &NotFoundError{ID: id}
	}
	r.mutatedLocked()
	return nil
}

// Remove uninstalls id: every directory holding that id is deleted and the id
// is dropped from the enabled list. Once deletion starts it runs to completion;
// ctx is only checked beforehand.
func (r *Registry) Remove(ctx context.Context, id manifest.ModID) ([]InstalledMod, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed, kept []InstalledMod
	for _, m := range r.mods {
		if m.ID() == id {
			removed = append(removed, m)
		} else {
			kept = append(kept, m)
		}
	}
	if len(removed) == 0 {
		return nil, &NotFoundError{ID: id}
	}

	fsys := r.scanner.Fs()
	var failed []InstalledMod
	var firstErr error
	for _, m := range removed {
		if !r.within(m.Path) {
			failed = append(failed, m)
			if firstErr == nil {
				firstErr = fmt.Errorf("refusing to remove %s: outside mod root", m.Path)
			}
			continue
		}
		if err := fsys.RemoveAll(m.Path); err != nil {
			failed = append(failed, m)
			if firstErr == nil {
				firstErr = fmt.Errorf("removing %s: %w", m.Path, err)
			}
		}
	}

	if len(failed) == 0 {
		if err := r.store.SetEnabled(id, false); err != nil {
			r.logger.Warn("could not update enabled list after uninstall", "id", id, "err", err)
		}
	}

	r.mods = append(kept, failed...)
	r.mutatedLocked()
	r.logger.Info("uninstalled", "id", id, "dirs", len(removed)-len(failed))
	return removed, firstErr
}

// Commit runs fn with the registry locked and inserts the entry it returns.
// fn typically promotes a staged directory into place; because the lock is
// held, commits never interleave with each other or with other mutations.
func (r *Registry) Commit(ctx context.Context, fn CommitFunc) (InstalledMod, error) {
	if err := ctx.Err(); err != nil {
		return InstalledMod{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := make([]InstalledMod, len(r.mods))
	for i, m := range r.mods {
		current[i] = m.Clone()
	}

	mod, err := fn(current)
	if err != nil {
		return InstalledMod{}, err
	}

	r.mods = slices.DeleteFunc(r.mods, func(m InstalledMod) bool { return m.Path == mod.Path })
	r.mods = append(r.mods, mod)
	r.mutatedLocked()
	return mod.Clone(), nil
}

// LoadOrder returns the enabled mods in dependency order.
func (r *Registry) LoadOrder() ([]InstalledMod, error) {
	return LoadOrder(r.Snapshot().Mods)
}

// Dependents returns the installed mods that depend on id.
func (r *Registry) Dependents(id manifest.ModID) []manifest.ModID {
	return Dependents(r.Snapshot().Mods, id)
}

func (r *Registry) winnerLocked(id manifest.ModID) (InstalledMod, bool) {
	var best *InstalledMod
	for i := range r.mods {
		m := &r.mods[i]
		if m.ID() != id {
			continue
		}
		if best == nil || compareForWin(*m, *best) < 0 {
			best = m
		}
	}
	if best == nil {
		return InstalledMod{}, false
	}
	return *best, true
}

// mutatedLocked re-sorts, re-resolves and bumps the generation.
func (r *Registry) mutatedLocked() {
	slices.SortFunc(r.mods, func(a, b InstalledMod) int {
		return cmp.Or(cmp.Compare(a.ID(), b.ID()), cmp.Compare(a.Dir, b.Dir))
	})
	r.conflicts = Resolve(r.mods, r.game)
	r.generation++
	if r.observer != nil {
		r.observer(r.snapshotLocked())
	}
}

func (r *Registry) snapshotLocked() Snapshot {
	mods := make([]InstalledMod, len(r.mods))
	for i, m := range r.mods {
		mods[i] = m.Clone()
	}
	conflicts := make([]Conflict, len(r.conflicts))
	for i, c := range r.conflicts {
		c.Others = slices.Clone(c.Others)
		conflicts[i] = c
	}
	return Snapshot{
		Mods:        mods,
		Conflicts:   conflicts,
		Diagnostics: slices.Clone(r.diagnostics),
		GameVersion: r.game,
		Generation:  r.generation,
	}
}

func (r *Registry) within(p string) bool {
	rel, err := filepath.Rel(r.root, p)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
