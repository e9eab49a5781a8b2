// SPDX-License-Identifier: MPL-2.0

package version

import (
	"regexp"
	"strings"
)

const (
	// GameDiffNone means the game versions match in every known component.
	GameDiffNone GameDiff = iota
	// GameDiffRC means only the release candidate differs.
	GameDiffRC
	// GameDiffPatch means the patch component differs.
	GameDiffPatch
	// GameDiffMinor means the minor component differs.
	GameDiffMinor
	// GameDiffMajor means the major component differs.
	GameDiffMajor
)

type (
	// GameVersion is a game release split into its assumed components.
	// Game releases are written like "0.95a-RC6", "0.95.1a-RC2" or "0.97a";
	// a leading "0." is sometimes omitted ("95a-RC6"). Empty components are unknown.
	GameVersion struct {
		Major string
		Minor string
		Patch string
		RC    string
	}

	// GameDiff classifies the first component in which two game versions differ.
	GameDiff int
)

var (
	gameVersionSplit = regexp.MustCompile(`(?i)\.|a-rc|a|-`)
	releaseCandidate = regexp.MustCompile(`(?i)a?-?rc\s*(\d+)\s*$`)
)

// ParseGameVersion splits a game release string into components.
// It reports false when the string does not fit any known layout.
//
// Layouts, after removing an "a-RC<n>" suffix:
//   - "0.<minor>"              -> major 0
//   - "<minor>.<patch>"        -> major 0 implied
//   - "0.<minor>.<patch>"
//   - "<minor>"                -> major 0 implied
func ParseGameVersion(text string) (GameVersion, bool) {
	s := strings.TrimSpace(text)
	var gv GameVersion
	if m := releaseCandidate.FindStringSubmatchIndex(s); m != nil {
		gv.RC = s[m[2]:m[3]]
		s = s[:m[0]]
	}

	var parts []string
	for _, p := range gameVersionSplit.Split(s, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	switch {
	case len(parts) == 1:
		gv.Major, gv.Minor = "0", parts[0]
	case len(parts) == 2 && parts[0] == "0":
		gv.Major, gv.Minor = parts[0], parts[1]
	case len(parts) == 2:
		gv.Major, gv.Minor, gv.Patch = "0", parts[0], parts[1]
	case len(parts) == 3 && parts[0] == "0":
		gv.Major, gv.Minor, gv.Patch = parts[0], parts[1], parts[2]
	default:
		return GameVersion{}, false
	}
	return gv, true
}

// Diff reports the most significant component in which g and other differ.
// Components unknown on either side are not compared.
func (g GameVersion) Diff(other GameVersion) GameDiff {
	differs := func(a, b string) bool {
		return a != "" && b != "" && CompareStrings(a, b) != Equal
	}
	switch {
	case differs(g.Major, other.Major):
		return GameDiffMajor
	case differs(g.Minor, other.Minor):
		return GameDiffMinor
	case differs(g.Patch, other.Patch):
		return GameDiffPatch
	case differs(g.RC, other.RC):
		return GameDiffRC
	default:
		return GameDiffNone
	}
}

// String renders the game version in the game's own style, e.g. "0.95.1a-RC2".
func (g GameVersion) String() string {
	var b strings.Builder
	b.WriteString(g.Major)
	b.WriteString(".")
	b.WriteString(g.Minor)
	if g.Patch != "" {
		b.WriteString(".")
		b.WriteString(g.Patch)
	}
	b.WriteString("a")
	if g.RC != "" {
		b.WriteString("-RC")
		b.WriteString(g.RC)
	}
	return b.String()
}

// String returns the lower-case diff name.
func (d GameDiff) String() string {
	switch d {
	case GameDiffNone:
		return "none"
	case GameDiffRC:
		return "rc"
	case GameDiffPatch:
		return "patch"
	case GameDiffMinor:
		return "minor"
	case GameDiffMajor:
		return "major"
	default:
		return "unknown"
	}
}
