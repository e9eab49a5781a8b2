// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// MustSetenv sets key to value for the rest of the test and restores the
// previous value (or unsets it) during cleanup.
func MustSetenv(t testing.TB, key, value string) {
	t.Helper()
	original, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		var err error
		if had {
			err = os.Setenv(key, original)
		} else {
			err = os.Unsetenv(key)
		}
		if err != nil {
			t.Errorf("failed to restore env %s: %v", key, err)
		}
	})
}

// SetConfigHome points the platform user-config directory at dir for the
// rest of the test and returns the directory os.UserConfigDir will report.
//
// Platform handling:
//   - Windows: sets APPDATA
//   - macOS: sets HOME (config lives in ~/Library/Application Support)
//   - others: sets XDG_CONFIG_HOME
func SetConfigHome(t testing.TB, dir string) string {
	t.Helper()
	switch runtime.GOOS {
	case "windows":
		MustSetenv(t, "APPDATA", dir)
		return dir
	case "darwin":
		MustSetenv(t, "HOME", dir)
		return filepath.Join(dir, "Library", "Application Support")
	default:
		MustSetenv(t, "XDG_CONFIG_HOME", dir)
		return dir
	}
}

// MustWriteFile writes content to path, creating parent directories.
func MustWriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// MustReadFile returns the content of path.
func MustReadFile(t testing.TB, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

// WriteMod lays out a minimal mod (see ModFiles) in dir on disk.
func WriteMod(t testing.TB, dir, id, ver string) {
	t.Helper()
	for _, e := range ModFiles("", id, ver) {
		MustWriteFile(t, filepath.Join(dir, filepath.FromSlash(e.Name)), e.Body)
	}
}
