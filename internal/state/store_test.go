// SPDX-License-Identifier: MPL-2.0

package state

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/modkit/modkit/internal/testutil"
	"github.com/modkit/modkit/pkg/manifest"
)

const root = "/game/mods"

func TestEnabled_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	s := New(afero.NewMemMapFs(), root)
	set, err := s.Enabled()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set) != 0 {
		t.Errorf("expected empty set, got %v", set)
	}
}

func TestEnabled_ReadsGameFile(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	doc := `{
		"enabledMods": [
			"lw_lazylib",
			"nexerelin",
			"nexerelin",
			"bad/id"
		]
	}`
	if err := afero.WriteFile(fsys, filepath.Join(root, EnabledFileName), []byte(doc), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	set, err := New(fsys, root).Enabled()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set) != 2 || !set["lw_lazylib"] || !set["nexerelin"] {
		t.Errorf("Enabled() = %v, want lw_lazylib and nexerelin", set)
	}
}

func TestEnabled_Corrupt(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, filepath.Join(root, EnabledFileName), []byte("{{"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := New(fsys, root).Enabled()
	if !errors.Is(err, ErrCorruptState) {
		t.Fatalf("expected ErrCorruptState, got %v", err)
	}
}

func TestSetEnabled_RoundTripAndPreservesUnknownIDs(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	s := New(fsys, root)

	for _, id := range []manifest.ModID{"nexerelin", "lw_lazylib", "not_installed"} {
		if err := s.SetEnabled(id, true); err != nil {
			t.Fatalf("SetEnabled(%s): %v", id, err)
		}
	}
	if err := s.SetEnabled("nexerelin", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Disabling something already disabled is a no-op.
	if err := s.SetEnabled("nexerelin", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := afero.ReadFile(fsys, filepath.Join(root, EnabledFileName))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, `"enabledMods"`) {
		t.Errorf("file missing enabledMods key: %s", got)
	}
	if strings.Index(got, "lw_lazylib") > strings.Index(got, "not_installed") {
		t.Errorf("ids not sorted: %s", got)
	}
	if strings.Contains(got, "nexerelin") {
		t.Errorf("disabled id still present: %s", got)
	}

	entries, err := afero.ReadDir(fsys, root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only %s in root, temp files left behind: %d entries", EnabledFileName, len(entries))
	}
}

func TestReplaceEnabled(t *testing.T) {
	t.Parallel()

	s := New(afero.NewMemMapFs(), root)
	if err := s.SetEnabled("old", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.ReplaceEnabled([]manifest.ModID{"b", "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	set, err := s.Enabled()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set) != 2 || set["old"] {
		t.Errorf("Enabled() = %v, want {a, b}", set)
	}
}

func TestMeta_WriteStampsClock(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	clock := testutil.NewFakeClock(time.Time{})
	s := New(fsys, root, WithClock(clock))
	dir := filepath.Join(root, "nexerelin")
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.WriteMeta(dir, InstallMeta{Source: "Nexerelin-0.11.2b.zip", Version: "0.11.2b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	meta, err := s.ReadMeta(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta == nil {
		t.Fatal("ReadMeta returned nil")
	}
	if !meta.InstalledAt.Equal(clock.Now()) {
		t.Errorf("InstalledAt = %v, want %v", meta.InstalledAt, clock.Now())
	}
	if meta.Source != "Nexerelin-0.11.2b.zip" || meta.Version != "0.11.2b" {
		t.Errorf("meta = %+v", meta)
	}
}

func TestReadMeta_Missing(t *testing.T) {
	t.Parallel()

	meta, err := ReadMeta(afero.NewMemMapFs(), "/nowhere")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta != nil {
		t.Errorf("expected nil meta, got %+v", meta)
	}
}

func TestWriteFileAtomic_Overwrites(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	path := filepath.Join(root, "file.json")
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, content := range []string{"first", "second"} {
		if err := WriteFileAtomic(fsys, path, []byte(content)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want %q", data, "second")
	}
}
