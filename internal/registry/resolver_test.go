// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"errors"
	"math/rand/v2"
	"reflect"
	"slices"
	"testing"

	"github.com/modkit/modkit/internal/dag"
	"github.com/modkit/modkit/pkg/manifest"
	"github.com/modkit/modkit/pkg/version"
)

func TestResolve_DuplicateKeepsHighestVersion(t *testing.T) {
	t.Parallel()

	mods := []InstalledMod{
		mod("modA", "1.0", "modA-old"),
		mod("modA", "2.0", "modA-new"),
	}
	conflicts := Resolve(mods, version.Version{})

	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %v", conflicts)
	}
	c := conflicts[0]
	if c.Kind != ConflictDuplicate || c.Dir != "modA-old" {
		t.Errorf("conflict = %+v, want duplicate on modA-old", c)
	}
	if !slices.Equal(c.Others, []string{"modA-new"}) {
		t.Errorf("Others = %v, want [modA-new]", c.Others)
	}
}

func TestResolve_DuplicateTieBreaksOnDirectoryName(t *testing.T) {
	t.Parallel()

	mods := []InstalledMod{
		mod("modA", "1.0", "b-copy"),
		mod("modA", "1.00", "a-copy"),
	}
	conflicts := Resolve(mods, version.Version{})
	if len(conflicts) != 1 || conflicts[0].Dir != "b-copy" {
		t.Fatalf("conflicts = %+v, want b-copy flagged", conflicts)
	}
	if w := Winners(mods); len(w) != 1 || w[0].Dir != "a-copy" {
		t.Errorf("Winners = %+v, want a-copy", w)
	}
}

func TestResolve_UnmetDependencies(t *testing.T) {
	t.Parallel()

	mods := []InstalledMod{
		mod("nexerelin", "0.11", "Nexerelin", "lw_lazylib@2.8", "MagicLib"),
		mod("lw_lazylib", "2.7", "LazyLib"),
		mod("graphicslib", "1.8", "GraphicsLib", "lw_lazylib@2.6"),
	}
	conflicts := Resolve(mods, version.Version{})

	if len(conflicts) != 2 {
		t.Fatalf("expected 2 conflicts, got %+v", conflicts)
	}
	for _, c := range conflicts {
		if c.Kind != ConflictUnmetDependency || c.ID != "nexerelin" {
			t.Errorf("unexpected conflict %+v", c)
		}
	}
	if conflicts[0].Others[0] != "MagicLib" && conflicts[1].Others[0] != "MagicLib" {
		t.Errorf("missing MagicLib not reported: %+v", conflicts)
	}
}

func TestResolve_DependencyUsesWinningDuplicate(t *testing.T) {
	t.Parallel()

	mods := []InstalledMod{
		mod("lib", "1.0", "lib-old"),
		mod("lib", "3.0", "lib-new"),
		mod("app", "1", "app", "lib@2.0"),
	}
	for _, c := range Resolve(mods, version.Version{}) {
		if c.Kind == ConflictUnmetDependency {
			t.Errorf("dependency should be satisfied by the winning duplicate: %+v", c)
		}
	}
}

func TestResolve_GameVersion(t *testing.T) {
	t.Parallel()

	mods := []InstalledMod{
		withGame(mod("old", "1", "old"), "0.95a-RC6"),
		withGame(mod("current", "1", "current"), "0.97a-RC11"),
		withGame(mod("ranged", "1", "ranged"), ">=0.95a, <0.98a"),
		mod("any", "1", "any"),
	}

	conflicts := Resolve(mods, version.Parse("0.97a-RC9"))
	if len(conflicts) != 1 || conflicts[0].Kind != ConflictGameVersion || conflicts[0].ID != "old" {
		t.Fatalf("conflicts = %+v, want only old flagged", conflicts)
	}

	if got := Resolve(mods, version.Version{}); len(got) != 0 {
		t.Errorf("unknown game version should disable the check, got %+v", got)
	}
}

func TestResolve_Cycle(t *testing.T) {
	t.Parallel()

	mods := []InstalledMod{
		mod("a", "1", "a", "b"),
		mod("b", "1", "b", "a"),
		mod("c", "1", "c"),
	}
	conflicts := Resolve(mods, version.Version{})
	if len(conflicts) != 2 {
		t.Fatalf("expected 2 cycle conflicts, got %+v", conflicts)
	}
	for _, c := range conflicts {
		if c.Kind != ConflictCycle {
			t.Errorf("unexpected conflict kind %s", c.Kind)
		}
	}
	if !slices.Equal(conflicts[0].Others, []string{"b"}) {
		t.Errorf("Others = %v, want [b]", conflicts[0].Others)
	}
}

func TestResolve_IdempotentAndOrderInsensitive(t *testing.T) {
	t.Parallel()

	mods := []InstalledMod{
		mod("modA", "1.0", "modA-1"),
		mod("modA", "2.0", "modA-2"),
		mod("app", "1", "app", "lib@5", "modA@3"),
		withGame(mod("lib", "4", "lib"), "0.95a"),
		mod("x", "1", "x", "y"),
		mod("y", "1", "y", "x"),
	}
	game := version.Parse("0.97a")

	want := Resolve(mods, game)
	if again := Resolve(mods, game); !reflect.DeepEqual(want, again) {
		t.Fatalf("Resolve is not idempotent:\n%+v\n%+v", want, again)
	}

	rng := rand.New(rand.NewPCG(1, 2))
	for range 20 {
		shuffled := slices.Clone(mods)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		if got := Resolve(shuffled, game); !reflect.DeepEqual(want, got) {
			t.Fatalf("Resolve depends on input order:\n%+v\n%+v", want, got)
		}
	}

	kinds := make([]ConflictKind, len(want))
	for i, c := range want {
		kinds[i] = c.Kind
	}
	if !slices.IsSorted(kinds) {
		t.Errorf("conflicts not sorted by kind: %v", kinds)
	}
}

func TestLoadOrder(t *testing.T) {
	t.Parallel()

	mods := []InstalledMod{
		enabled(mod("nexerelin", "1", "Nexerelin", "lw_lazylib", "MagicLib")),
		enabled(mod("MagicLib", "1", "MagicLib", "lw_lazylib")),
		enabled(mod("lw_lazylib", "1", "LazyLib")),
		mod("disabled", "1", "Disabled"),
		enabled(mod("standalone", "1", "Standalone", "disabled")),
	}

	order, err := LoadOrder(mods)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var ids []manifest.ModID
	for _, m := range order {
		ids = append(ids, m.ID())
	}
	want := []manifest.ModID{"lw_lazylib", "MagicLib", "nexerelin", "standalone"}
	if !slices.Equal(ids, want) {
		t.Errorf("LoadOrder = %v, want %v", ids, want)
	}
}

func TestLoadOrder_Cycle(t *testing.T) {
	t.Parallel()

	_, err := LoadOrder([]InstalledMod{
		enabled(mod("a", "1", "a", "b")),
		enabled(mod("b", "1", "b", "a")),
	})
	var cycleErr *dag.CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *dag.CycleError, got %v", err)
	}
}

func TestDependents(t *testing.T) {
	t.Parallel()

	mods := []InstalledMod{
		mod("nexerelin", "1", "Nexerelin", "MagicLib"),
		mod("MagicLib", "1", "MagicLib", "lw_lazylib"),
		mod("lw_lazylib", "1", "LazyLib"),
		mod("other", "1", "Other"),
	}
	got := Dependents(mods, "lw_lazylib")
	want := []manifest.ModID{"MagicLib", "nexerelin"}
	if !slices.Equal(got, want) {
		t.Errorf("Dependents = %v, want %v", got, want)
	}
}
