// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/modkit/modkit/internal/state"
	"github.com/modkit/modkit/pkg/manifest"
	"github.com/modkit/modkit/pkg/version"
)

const (
	// ConflictDuplicate flags every entry sharing an id except the winner.
	ConflictDuplicate ConflictKind = "duplicate-identity"
	// ConflictUnmetDependency flags a mod whose dependency is absent or too old.
	ConflictUnmetDependency ConflictKind = "unmet-dependency"
	// ConflictGameVersion flags a mod whose game requirement excludes the game version.
	ConflictGameVersion ConflictKind = "incompatible-game-version"
	// ConflictCycle flags mods on, or depending on, a dependency cycle.
	ConflictCycle ConflictKind = "dependency-cycle"
)

// ErrNotFound is returned when no installed mod has the requested id.
var ErrNotFound = errors.New("mod not installed")

type (
	// InstalledMod is a mod directory present under the mod root.
	InstalledMod struct {
		Descriptor manifest.Descriptor
		// Path is the mod directory.
		Path string
		// Dir is the directory name, the last element of Path.
		Dir     string
		Enabled bool
		// Remote is the last known remote version, nil until checked.
		Remote *RemoteInfo
		// Meta is the install metadata, nil for mods modkit did not install.
		Meta *state.InstallMeta
	}

	// RemoteInfo is what the last update check learned about a mod.
	RemoteInfo struct {
		Version     version.Version
		DownloadURL string
		Outcome     string
		CheckedAt   time.Time
	}

	// ConflictKind names a category of conflict.
	ConflictKind string

	// Conflict is an advisory problem found by the resolver. It is never
	// returned as an error.
	Conflict struct {
		Kind ConflictKind
		ID   manifest.ModID
		Dir  string
		// Others lists what the mod conflicts with: the winning directory for
		// duplicates, the dependency id for unmet dependencies, the required
		// game version for incompatibilities and the other members for cycles.
		Others []string
		Detail string
	}

	// Snapshot is a consistent, post-resolve copy of the registry.
	Snapshot struct {
		Mods        []InstalledMod
		Conflicts   []Conflict
		Diagnostics []Diagnostic
		GameVersion version.Version
		Generation  uint64
	}

	// NotFoundError reports an id with no installed mod.
	NotFoundError struct {
		ID manifest.ModID
	}
)

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("mod %q is not installed", e.ID)
}

// Unwrap returns ErrNotFound for errors.Is.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ID is shorthand for m.Descriptor.ID().
func (m InstalledMod) ID() manifest.ModID {
	return m.Descriptor.Identity.ID
}

// Clone returns a copy that shares no mutable state with m.
func (m InstalledMod) Clone() InstalledMod {
	c := m
	if m.Remote != nil {
		r := *m.Remote
		c.Remote = &r
	}
	if m.Meta != nil {
		meta := *m.Meta
		c.Meta = &meta
	}
	if m.Descriptor.Checker != nil {
		ch := *m.Descriptor.Checker
		c.Descriptor.Checker = &ch
	}
	c.Descriptor.Dependencies = slices.Clone(m.Descriptor.Dependencies)
	c.Descriptor.Jars = slices.Clone(m.Descriptor.Jars)
	return c
}

// Find returns the mods in the snapshot with the given id, winner first.
func (s Snapshot) Find(id manifest.ModID) []InstalledMod {
	var out []InstalledMod
	for _, m := range s.Mods {
		if m.ID() == id {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, compareForWin)
	return out
}

// ConflictsFor returns the conflicts naming id.
func (s Snapshot) ConflictsFor(id manifest.ModID) []Conflict {
	var out []Conflict
	for _, c := range s.Conflicts {
		if c.ID == id {
			out = append(out, c)
		}
	}
	return out
}
