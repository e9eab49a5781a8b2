// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/modkit/modkit/pkg/manifest"
	"github.com/modkit/modkit/pkg/version"
)

const testRoot = "/game/mods"

// writeFile creates path with content, creating parent directories.
func writeFile(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// writeMod writes a minimal manifest for id/version into testRoot/dir.
// deps are "id" or "id@minVersion".
func writeMod(t *testing.T, fsys afero.Fs, dir, id, ver string, deps ...string) string {
	t.Helper()
	var depJSON []string
	for _, d := range deps {
		depID, minV, _ := strings.Cut(d, "@")
		if minV != "" {
			depJSON = append(depJSON, fmt.Sprintf(`{"id": %q, "version": %q}`, depID, minV))
		} else {
			depJSON = append(depJSON, fmt.Sprintf(`{"id": %q}`, depID))
		}
	}
	doc := fmt.Sprintf(`{"id": %q, "name": %q, "version": %q, "dependencies": [%s]}`,
		id, id, ver, strings.Join(depJSON, ", "))
	path := filepath.Join(testRoot, dir)
	writeFile(t, fsys, filepath.Join(path, manifest.FileName), doc)
	return path
}

// mod builds an InstalledMod in memory.
func mod(id, ver, dir string, deps ...string) InstalledMod {
	d := manifest.Descriptor{
		Identity: manifest.NewIdentity(manifest.ModID(id), id),
		Name:     id,
		Version:  version.Parse(ver),
	}
	for _, dep := range deps {
		depID, minV, _ := strings.Cut(dep, "@")
		d.Dependencies = append(d.Dependencies, manifest.Dependency{
			ID:         manifest.ModID(depID),
			MinVersion: version.Parse(minV),
		})
	}
	return InstalledMod{
		Descriptor: d,
		Path:       filepath.Join(testRoot, dir),
		Dir:        dir,
	}
}

func enabled(m InstalledMod) InstalledMod {
	m.Enabled = true
	return m
}

func withGame(m InstalledMod, req string) InstalledMod {
	r, err := manifest.ParseGameVersionReq(req)
	if err != nil {
		panic(err)
	}
	m.Descriptor.GameVersion = r
	return m
}
