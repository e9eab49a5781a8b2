// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/modkit/modkit/internal/installer"
	"github.com/modkit/modkit/internal/metrics"
	"github.com/modkit/modkit/internal/registry"
	"github.com/modkit/modkit/internal/state"
	"github.com/modkit/modkit/internal/testutil"
	"github.com/modkit/modkit/internal/updatecheck"
	"github.com/modkit/modkit/pkg/manifest"
)

const waitTimeout = 5 * time.Second

type fixture struct {
	eng     *Engine
	root    string
	metrics *metrics.Metrics
	events  *recorder
}

func newFixture(t *testing.T, checkerOpts ...updatecheck.Option) *fixture {
	t.Helper()
	root := filepath.Join(t.TempDir(), "mods")
	testutil.MustWriteFile(t, filepath.Join(root, state.EnabledFileName), `{"enabledMods": []}`)

	discard := log.New(io.Discard)
	fsys := afero.NewOsFs()
	reg := registry.New(root, registry.NewScanner(fsys), state.New(fsys, root), registry.WithLogger(discard))
	if _, err := reg.Rescan(context.Background()); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	pool := installer.NewPool(installer.New(reg, installer.WithLogger(discard)), 2)
	checker := updatecheck.New(append([]updatecheck.Option{updatecheck.WithLogger(discard)}, checkerOpts...)...)

	m := metrics.New()
	eng := New(pool, checker, WithLogger(discard), WithMetrics(m), WithTempDir(t.TempDir()))
	rec := &recorder{ch: make(chan Event, 1024)}
	unsubscribe := eng.Subscribe(rec.record)
	t.Cleanup(func() {
		unsubscribe()
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		if err := eng.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
	return &fixture{eng: eng, root: root, metrics: m, events: rec}
}

// writeArchive stores a zip holding a minimal mod and returns its path.
func (f *fixture) writeArchive(t *testing.T, id, ver string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), id+"-"+ver+".zip")
	testutil.MustWriteFile(t, p, string(testutil.ZipArchive(t, testutil.ModFiles("", id, ver)...)))
	return p
}

// writeMod places a mod directory straight into the root and rescans.
func (f *fixture) writeMod(t *testing.T, dir, modInfo string) {
	t.Helper()
	testutil.MustWriteFile(t, filepath.Join(f.root, dir, manifest.FileName), modInfo)
	if _, err := f.eng.Registry().Rescan(context.Background()); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
}

// recorder buffers events for assertions.
type recorder struct {
	mu  sync.Mutex
	all []Event
	ch  chan Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	r.all = append(r.all, ev)
	r.mu.Unlock()
	r.ch <- ev
}

// terminal waits for the completed or failed event of op and returns it
// together with every event of op seen before it.
func (r *recorder) terminal(t *testing.T, op string) (Event, []Event) {
	t.Helper()
	var seen []Event
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev := <-r.ch:
			if ev.Op != op {
				continue
			}
			seen = append(seen, ev)
			if ev.Kind == EventCompleted || ev.Kind == EventFailed {
				return ev, seen
			}
		case <-deadline:
			t.Fatalf("no terminal event for %s", op)
		}
	}
}

// next waits for the first event matching pred.
func (r *recorder) next(t *testing.T, pred func(Event) bool) Event {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev := <-r.ch:
			if pred(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("expected event did not arrive")
		}
	}
}
