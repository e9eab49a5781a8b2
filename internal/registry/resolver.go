// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/modkit/modkit/internal/dag"
	"github.com/modkit/modkit/pkg/manifest"
	"github.com/modkit/modkit/pkg/version"
)

// Resolve derives the conflict list for mods against the game version.
// It does not modify mods and returns the same result for the same input
// regardless of input order. Conflicts are sorted by kind, id, then directory.
//
// Among entries sharing an id, the highest version wins; equal versions are
// broken by the lexicographically first directory name. Dependency, game
// version and cycle checks consider winning entries only.
func Resolve(mods []InstalledMod, game version.Version) []Conflict {
	var conflicts []Conflict

	winners := make(map[manifest.ModID]InstalledMod)
	for _, group := range groupByID(mods) {
		win := group[0]
		winners[win.ID()] = win
		for _, loser := range group[1:] {
			conflicts = append(conflicts, Conflict{
				Kind:   ConflictDuplicate,
				ID:     loser.ID(),
				Dir:    loser.Dir,
				Others: []string{win.Dir},
				Detail: fmt.Sprintf("version %s in %q is shadowed by version %s in %q",
					loser.Descriptor.Version, loser.Dir, win.Descriptor.Version, win.Dir),
			})
		}
	}

	graph := dag.New[manifest.ModID]()
	for _, id := range sortedKeys(winners) {
		m := winners[id]
		graph.AddNode(id)

		if !m.Descriptor.GameVersion.Allows(game) {
			conflicts = append(conflicts, Conflict{
				Kind:   ConflictGameVersion,
				ID:     id,
				Dir:    m.Dir,
				Others: []string{m.Descriptor.GameVersion.String()},
				Detail: fmt.Sprintf("requires game %s, running %s", m.Descriptor.GameVersion, game),
			})
		}

		for _, dep := range m.Descriptor.Dependencies {
			have, ok := winners[dep.ID]
			switch {
			case !ok:
				conflicts = append(conflicts, Conflict{
					Kind:   ConflictUnmetDependency,
					ID:     id,
					Dir:    m.Dir,
					Others: []string{string(dep.ID)},
					Detail: fmt.Sprintf("requires %s, which is not installed", dependencyLabel(dep)),
				})
			case !dep.MinVersion.IsZero() && !version.Satisfies(have.Descriptor.Version, dep.MinVersion):
				conflicts = append(conflicts, Conflict{
					Kind:   ConflictUnmetDependency,
					ID:     id,
					Dir:    m.Dir,
					Others: []string{string(dep.ID)},
					Detail: fmt.Sprintf("requires %s %s or newer, found %s",
						dependencyLabel(dep), dep.MinVersion, have.Descriptor.Version),
				})
			default:
				graph.AddEdge(dep.ID, id)
			}
		}
	}

	if _, err := graph.TopologicalSort(); err != nil {
		var cycleErr *dag.CycleError
		if errors.As(err, &cycleErr) {
			for _, name := range cycleErr.Cycle {
				id := manifest.ModID(name)
				others := slices.DeleteFunc(slices.Clone(cycleErr.Cycle), func(s string) bool { return s == name })
				conflicts = append(conflicts, Conflict{
					Kind:   ConflictCycle,
					ID:     id,
					Dir:    winners[id].Dir,
					Others: others,
					Detail: "is on, or depends on, a dependency cycle",
				})
			}
		}
	}

	slices.SortFunc(conflicts, func(a, b Conflict) int {
		return cmp.Or(
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.ID, b.ID),
			cmp.Compare(a.Dir, b.Dir),
			cmp.Compare(a.Detail, b.Detail),
		)
	})
	return conflicts
}

// Winners returns the winning entry for each id, sorted by id.
func Winners(mods []InstalledMod) []InstalledMod {
	groups := groupByID(mods)
	out := make([]InstalledMod, 0, len(groups))
	for _, g := range groups {
		out = append(out, g[0])
	}
	return out
}

// LoadOrder returns the enabled winning mods with every dependency before its
// dependents. Dependencies that are disabled or missing are ignored; the
// resolver reports them separately.
func LoadOrder(mods []InstalledMod) ([]InstalledMod, error) {
	enabled := make(map[manifest.ModID]InstalledMod)
	for _, m := range Winners(mods) {
		if m.Enabled {
			enabled[m.ID()] = m
		}
	}

	graph := dag.New[manifest.ModID]()
	for _, id := range sortedKeys(enabled) {
		graph.AddNode(id)
		for _, dep := range enabled[id].Descriptor.Dependencies {
			if _, ok := enabled[dep.ID]; ok {
				graph.AddEdge(dep.ID, id)
			}
		}
	}

	order, err := graph.TopologicalSort()
	if err != nil {
		return nil, err
	}
	out := make([]InstalledMod, len(order))
	for i, id := range order {
		out[i] = enabled[id]
	}
	return out, nil
}

// Dependents returns the ids of installed mods that directly or transitively
// depend on id.
func Dependents(mods []InstalledMod, id manifest.ModID) []manifest.ModID {
	graph := dag.New[manifest.ModID]()
	for _, m := range Winners(mods) {
		graph.AddNode(m.ID())
		for _, dep := range m.Descriptor.Dependencies {
			graph.AddEdge(dep.ID, m.ID())
		}
	}
	return graph.Dependents(id)
}

// groupByID groups mods by id, sorted by id, with each group's winner first.
func groupByID(mods []InstalledMod) [][]InstalledMod {
	byID := make(map[manifest.ModID][]InstalledMod)
	for _, m := range mods {
		byID[m.ID()] = append(byID[m.ID()], m)
	}
	groups := make([][]InstalledMod, 0, len(byID))
	for _, id := range sortedKeys(byID) {
		g := byID[id]
		slices.SortStableFunc(g, compareForWin)
		groups = append(groups, g)
	}
	return groups
}

// compareForWin orders a before b when a beats b: higher version first, then
// lexicographically smaller directory name.
func compareForWin(a, b InstalledMod) int {
	if o := version.Compare(a.Descriptor.Version, b.Descriptor.Version); o != version.Equal {
		return -int(o)
	}
	return cmp.Compare(a.Dir, b.Dir)
}

func dependencyLabel(dep manifest.Dependency) string {
	if dep.Name != "" && dep.Name != string(dep.ID) {
		return fmt.Sprintf("%s (%s)", dep.Name, dep.ID)
	}
	return string(dep.ID)
}

func sortedKeys[V any](m map[manifest.ModID]V) []manifest.ModID {
	return slices.Sorted(maps.Keys(m))
}
