// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/modkit/modkit/internal/config"
	"github.com/modkit/modkit/internal/testutil"
)

const testTimeout = 10 * time.Second

type (
	// lockedBuffer is a bytes.Buffer safe for the concurrent writes of
	// loggers and progress callbacks.
	lockedBuffer struct {
		mu  sync.Mutex
		buf bytes.Buffer
	}

	// staticConfig is a ConfigProvider returning a copy of cfg.
	staticConfig struct {
		cfg config.Config
	}

	testApp struct {
		app    *App
		root   string
		stdout *lockedBuffer
		stderr *lockedBuffer
	}
)

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (s staticConfig) Load(ctx context.Context, _ config.LoadOptions) (*config.Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := s.cfg
	return &cfg, nil
}

// newTestApp returns an App over a fresh, empty mods directory. mutate may
// adjust the default config before it is frozen.
func newTestApp(t *testing.T, mutate func(*config.Config)) *testApp {
	t.Helper()
	root := filepath.Join(t.TempDir(), "mods")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.ModsDir = root
	cfg.LogLevel = config.LogLevelError
	if mutate != nil {
		mutate(cfg)
	}

	ta := &testApp{root: root, stdout: &lockedBuffer{}, stderr: &lockedBuffer{}}
	ta.app = NewApp(Dependencies{
		Config: staticConfig{cfg: *cfg},
		Stdout: ta.stdout,
		Stderr: ta.stderr,
	})
	return ta
}

// run executes the CLI with args against the test app.
func (ta *testApp) run(t *testing.T, args ...string) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	return ta.runContext(ctx, args...)
}

func (ta *testApp) runContext(ctx context.Context, args ...string) error {
	root := NewRootCommand(ta.app)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// writeMod lays out a mod directory with a custom manifest.
func (ta *testApp) writeMod(t *testing.T, dir, manifest string) {
	t.Helper()
	testutil.MustWriteFile(t, filepath.Join(ta.root, dir, "mod_info.json"), manifest)
}

// writeArchive writes a zip holding a minimal mod and returns its path.
func writeArchive(t *testing.T, id, ver string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), id+"-"+ver+".zip")
	data := testutil.ZipArchive(t, testutil.ModFiles(id+"/", id, ver)...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return path
}

// exitCode returns the ExitError code of err, or -1.
func exitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}
