// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/modkit/modkit/pkg/manifest"
)

// maxManifestDepth bounds the recursive manifest search below staging.
const maxManifestDepth = 4

// locateManifest returns the directory holding the mod manifest. The staged
// root wins, then the shallowest match found breadth-first, ties going to the
// lexicographically first path. Wrapper folders such as "MyMod-1.2/" are the
// common case of the latter.
func locateManifest(fsys afero.Fs, root string) (string, error) {
	level := []string{root}
	for depth := 0; depth <= maxManifestDepth && len(level) > 0; depth++ {
		var next []string
		for _, dir := range level {
			if ok, _ := afero.Exists(fsys, filepath.Join(dir, manifest.FileName)); ok {
				return dir, nil
			}
			entries, err := afero.ReadDir(fsys, dir)
			if err != nil {
				return "", fsError("read", dir, err)
			}
			for _, e := range entries {
				if e.IsDir() && !ignoredDir(e.Name()) {
					next = append(next, filepath.Join(dir, e.Name()))
				}
			}
		}
		slices.Sort(next)
		level = next
	}
	return "", ErrManifestNotFound
}

// ignoredDir reports archive clutter that never holds a mod.
func ignoredDir(name string) bool {
	return name == "__MACOSX" || strings.HasPrefix(name, ".")
}
