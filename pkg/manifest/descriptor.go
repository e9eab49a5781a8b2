// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"strings"
	"unicode"

	"github.com/modkit/modkit/pkg/version"
)

// FileName is the manifest file every mod directory must contain.
const FileName = "mod_info.json"

type (
	// ModID is the unique identifier a mod declares in its manifest.
	// It is stable across versions and doubles as the default install directory name.
	ModID string

	// Identity is the immutable key of a mod: its declared id plus a normalized
	// display name used for search.
	Identity struct {
		ID             ModID
		NormalizedName string
	}

	// Dependency is a declared requirement on another mod.
	// A zero MinVersion accepts any installed version.
	Dependency struct {
		ID         ModID
		Name       string
		MinVersion version.Version
	}

	// Checker describes where a mod publishes its current version.
	Checker struct {
		// URL is the remote version document (masterVersionFile).
		URL string
		// DirectDownloadURL, when set, points at an installable archive.
		DirectDownloadURL string
		// LocalVersion is the version recorded in the local version file.
		// It is zero when the checker came from the manifest itself.
		LocalVersion version.Version
		// ThreadID and NexusID identify the mod on community sites.
		ThreadID string
		NexusID  string
	}

	// Descriptor is a parsed manifest.
	Descriptor struct {
		Identity        Identity
		Name            string
		Version         version.Version
		GameVersion     GameVersionReq
		Dependencies    []Dependency
		Checker         *Checker
		Author          string
		Description     string
		Utility         bool
		TotalConversion bool
		Jars            []string
	}
)

// String returns the id as a string.
func (id ModID) String() string { return string(id) }

// Validate returns nil when the id is usable as a registry key and directory name.
func (id ModID) Validate() error {
	s := string(id)
	switch {
	case strings.TrimSpace(s) == "":
		return &InvalidModIDError{Value: id, Reason: "empty"}
	case s != strings.TrimSpace(s):
		return &InvalidModIDError{Value: id, Reason: "leading or trailing whitespace"}
	case s == "." || s == "..":
		return &InvalidModIDError{Value: id, Reason: "reserved name"}
	case strings.ContainsAny(s, `/\:`):
		return &InvalidModIDError{Value: id, Reason: "contains a path separator"}
	case strings.IndexFunc(s, unicode.IsControl) >= 0:
		return &InvalidModIDError{Value: id, Reason: "contains control characters"}
	}
	return nil
}

// NewIdentity builds an Identity, normalizing name (or the id when name is empty).
func NewIdentity(id ModID, name string) Identity {
	if strings.TrimSpace(name) == "" {
		name = string(id)
	}
	return Identity{ID: id, NormalizedName: NormalizeName(name)}
}

// Matches reports whether the normalized query occurs in the normalized name or id.
func (i Identity) Matches(query string) bool {
	q := NormalizeName(query)
	if q == "" {
		return true
	}
	return strings.Contains(i.NormalizedName, q) || strings.Contains(NormalizeName(string(i.ID)), q)
}

// ID is shorthand for d.Identity.ID.
func (d *Descriptor) ID() ModID {
	return d.Identity.ID
}

// DisplayName returns the name, falling back to the id.
func (d *Descriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return string(d.Identity.ID)
}

// AttachVersionFile sets the checker from a local version file.
// Manifest-declared URLs are kept when the version file omits them.
func (d *Descriptor) AttachVersionFile(vf *VersionFile) {
	if vf == nil {
		return
	}
	c := &Checker{}
	if d.Checker != nil {
		*c = *d.Checker
	}
	if vf.MasterURL != "" {
		c.URL = vf.MasterURL
	}
	if vf.DirectDownloadURL != "" {
		c.DirectDownloadURL = vf.DirectDownloadURL
	}
	c.LocalVersion = vf.Version
	c.ThreadID = vf.ThreadID
	c.NexusID = vf.NexusID
	d.Checker = c
}

// CheckedVersion returns the version update checks compare against: the local
// version file's version when present, else the manifest version.
func (d *Descriptor) CheckedVersion() version.Version {
	if d.Checker != nil && !d.Checker.LocalVersion.IsZero() {
		return d.Checker.LocalVersion
	}
	return d.Version
}

// HasChecker reports whether the mod declares a checker URL.
func (d *Descriptor) HasChecker() bool {
	return d.Checker != nil && d.Checker.URL != ""
}
