// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"io"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/modkit/modkit/internal/registry"
	"github.com/modkit/modkit/internal/state"
	"github.com/modkit/modkit/internal/testutil"
)

var installedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// newTestInstaller returns an installer over a fresh on-disk mod root.
func newTestInstaller(t *testing.T) (*Installer, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "mods")
	testutil.MustWriteFile(t, filepath.Join(root, state.EnabledFileName), `{"enabledMods": []}`)

	fsys := afero.NewOsFs()
	store := state.New(fsys, root, state.WithClock(testutil.NewFakeClock(installedAt)))
	reg := registry.New(root, registry.NewScanner(fsys), store, registry.WithLogger(log.New(io.Discard)))
	if _, err := reg.Rescan(context.Background()); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	return New(reg, WithLogger(log.New(io.Discard))), root
}

// tree returns every path below root with file contents, for before/after
// comparisons. Directories map to "/".
func tree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		if d.IsDir() {
			out[rel] = "/"
			return nil
		}
		out[rel] = testutil.MustReadFile(t, p)
		return nil
	})
	if err != nil {
		t.Fatalf("walking %s: %v", root, err)
	}
	return out
}

func assertSameTree(t *testing.T, before, after map[string]string) {
	t.Helper()
	for p, v := range before {
		if got, ok := after[p]; !ok {
			t.Errorf("%s disappeared", p)
		} else if got != v {
			t.Errorf("%s changed", p)
		}
	}
	for p := range after {
		if _, ok := before[p]; !ok {
			t.Errorf("%s appeared", p)
		}
	}
}

func modArchive(t *testing.T, id, ver string, extra ...testutil.Entry) []byte {
	t.Helper()
	return testutil.ZipArchive(t, append(testutil.ModFiles("", id, ver), extra...)...)
}
