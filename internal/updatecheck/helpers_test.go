// SPDX-License-Identifier: MPL-2.0

package updatecheck

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/modkit/modkit/internal/registry"
	"github.com/modkit/modkit/pkg/manifest"
	"github.com/modkit/modkit/pkg/version"
)

// versionDoc renders a remote version document.
func versionDoc(major, minor, patch string) string {
	return fmt.Sprintf(`{
		# comments are allowed
		"masterVersionFile": "https://example.invalid/alpha.version",
		"directDownloadURL": "https://example.invalid/alpha.zip",
		"modName": "Alpha",
		"modVersion": {"major": %s, "minor": %s, "patch": %q},
	}`, major, minor, patch)
}

// checkedMod builds an installed mod whose checker points at url. An empty
// url means no checker.
func checkedMod(id, local, url string) registry.InstalledMod {
	d := manifest.Descriptor{
		Identity: manifest.NewIdentity(manifest.ModID(id), id),
		Name:     id,
		Version:  version.Parse(local),
	}
	if url != "" {
		d.Checker = &manifest.Checker{URL: url}
	}
	return registry.InstalledMod{Descriptor: d, Dir: id}
}

func newTestChecker(t *testing.T, opts ...Option) *Checker {
	t.Helper()
	return New(append([]Option{WithLogger(log.New(io.Discard))}, opts...)...)
}

// docServer serves body for every request and counts hits.
type docServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newDocServer(t *testing.T, handler http.HandlerFunc) *docServer {
	t.Helper()
	ds := &docServer{}
	ds.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ds.hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(ds.Close)
	return ds
}

func serveString(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, body)
	}
}

// steppingClock advances by step on every call to Now.
type steppingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}
