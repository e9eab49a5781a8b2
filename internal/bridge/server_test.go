// SPDX-License-Identifier: MPL-2.0

package bridge

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/spf13/afero"

	"github.com/modkit/modkit/internal/core/serverbase"
	"github.com/modkit/modkit/internal/engine"
	"github.com/modkit/modkit/internal/installer"
	"github.com/modkit/modkit/internal/metrics"
	"github.com/modkit/modkit/internal/registry"
	"github.com/modkit/modkit/internal/state"
	"github.com/modkit/modkit/internal/testutil"
	"github.com/modkit/modkit/internal/updatecheck"
)

const waitTimeout = 5 * time.Second

// startServer runs a bridge over a fresh mod root and returns it with the
// root directory.
func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "mods")
	testutil.MustWriteFile(t, filepath.Join(root, state.EnabledFileName), `{"enabledMods": []}`)
	testutil.MustWriteFile(t, filepath.Join(root, "alpha", "mod_info.json"), `{"id": "alpha", "version": "1.0"}`)

	discard := log.New(io.Discard)
	fsys := afero.NewOsFs()
	reg := registry.New(root, registry.NewScanner(fsys), state.New(fsys, root), registry.WithLogger(discard))
	if _, err := reg.Rescan(context.Background()); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	m := metrics.New()
	pool := installer.NewPool(installer.New(reg, installer.WithLogger(discard)), 1)
	eng := engine.New(pool, updatecheck.New(updatecheck.WithLogger(discard)), engine.WithLogger(discard), engine.WithMetrics(m))

	srv := NewServer(eng, Config{}, WithLogger(discard), WithMetrics(m))
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		if err := srv.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
		_ = eng.Shutdown(context.Background())
	})
	return srv, root
}

func dial(t *testing.T, srv *Server) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	c, err := Dial(ctx, srv.URL(), srv.Token())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// await returns the first event matching pred.
func await(t *testing.T, c *Client, pred func(Envelope) bool) Envelope {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case env, ok := <-c.Events():
			if !ok {
				t.Fatalf("connection closed: %v", c.Err())
			}
			if pred(env) {
				return env
			}
		case <-deadline:
			t.Fatal("expected event did not arrive")
		}
	}
}

// waitClosed drains c until the server closes the connection.
func waitClosed(t *testing.T, c *Client) {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case _, ok := <-c.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("connection still open")
		}
	}
}

func TestServer_Lifecycle(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t)
	if srv.State() != serverbase.StateRunning {
		t.Fatalf("state = %s, want running", srv.State())
	}
	if !strings.HasPrefix(srv.Address(), "127.0.0.1:") || len(srv.Token()) != 64 {
		t.Errorf("address %q, token %q", srv.Address(), srv.Token())
	}
	if err := srv.Start(context.Background()); !errors.Is(err, serverbase.ErrNotStartable) {
		t.Errorf("second Start() = %v", err)
	}

	c := dial(t, srv)
	if err := srv.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if srv.State() != serverbase.StateStopped {
		t.Errorf("state = %s, want stopped", srv.State())
	}
	waitClosed(t, c)
	if err := srv.Stop(); err != nil {
		t.Errorf("second Stop() = %v", err)
	}
}

func TestServer_Snapshot(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t)
	c := dial(t, srv)

	req, err := c.Send(engine.Command{Kind: engine.CmdSnapshot})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env := await(t, c, func(e Envelope) bool { return e.Req == req })
	var body SnapshotBody
	if err := env.DecodeBody(&body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Kind != string(engine.EventSnapshot) || len(body.Mods) != 1 || body.Mods[0].ID != "alpha" {
		t.Errorf("snapshot %s %+v", env.Kind, body)
	}
}

func TestServer_InstallBroadcastsToAllClients(t *testing.T) {
	t.Parallel()

	srv, root := startServer(t)
	sender, watcher := dial(t, srv), dial(t, srv)

	archive := filepath.Join(t.TempDir(), "beta.zip")
	testutil.MustWriteFile(t, archive, string(testutil.ZipArchive(t, testutil.ModFiles("", "beta", "2.0")...)))

	req, err := sender.Send(engine.Command{Kind: engine.CmdInstall, Archive: archive})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	accepted := await(t, sender, func(e Envelope) bool { return e.Req == req && e.Kind == string(engine.EventAccepted) })
	if accepted.Op == "" {
		t.Fatal("accepted event carries no operation id")
	}

	for _, c := range []*Client{sender, watcher} {
		env := await(t, c, func(e Envelope) bool {
			return e.Op == accepted.Op && (e.Kind == string(engine.EventCompleted) || e.Kind == string(engine.EventFailed))
		})
		var body CompletedBody
		if err := env.DecodeBody(&body); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.Kind != string(engine.EventCompleted) || body.Mod == nil || body.Mod.ID != "beta" {
			t.Errorf("terminal %s %+v", env.Kind, body)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "beta", "mod_info.json")); err != nil {
		t.Errorf("installed manifest missing: %v", err)
	}
}

func TestServer_InvalidCommandFails(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t)
	c := dial(t, srv)

	req, err := c.Send(engine.Command{Kind: engine.CmdUninstall})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env := await(t, c, func(e Envelope) bool { return e.Req == req })
	var body FailedBody
	if err := env.DecodeBody(&body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Kind != string(engine.EventFailed) || body.Kind != engine.FailInvalidCommand {
		t.Errorf("got %s %+v", env.Kind, body)
	}
}

func TestServer_MalformedFrames(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t)
	c := dial(t, srv)

	if err := c.sendFrame(websocket.BinaryMessage, []byte{0xff, 0xff}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env := await(t, c, func(e Envelope) bool { return e.Kind == string(engine.EventFailed) })
	var body FailedBody
	if err := env.DecodeBody(&body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Kind != FailProtocol {
		t.Errorf("failure kind = %q, want %q", body.Kind, FailProtocol)
	}

	// A frame of another protocol version ends the connection.
	if err := c.SendEnvelope(Envelope{V: ProtocolVersion + 1, Kind: "snapshot"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitClosed(t, c)
}

func TestServer_Handshake(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	if _, err := Dial(ctx, srv.URL(), "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Dial with bad token = %v, want ErrUnauthorized", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+srv.Token())
	header.Set(ProtocolHeader, strconv.Itoa(ProtocolVersion+1))
	_, resp, err := websocket.DefaultDialer.DialContext(ctx, srv.URL(), header)
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("response = %+v, want 426", resp)
	}
	if got := resp.Header.Get(ProtocolHeader); got != strconv.Itoa(ProtocolVersion) {
		t.Errorf("%s = %q", ProtocolHeader, got)
	}
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t)
	url := "http://" + srv.Address() + MetricsPath

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("Authorization", "Bearer "+srv.Token())
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "modkit_registry_generation") {
		t.Errorf("status %d, body:\n%s", resp.StatusCode, body)
	}
}

func TestServer_RejectDisconnectsFullClient(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t)

	accepted := make(chan *websocket.Conn, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- ws
	}))
	defer ts.Close()

	peer, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	defer func() { _ = peer.Close() }()

	// No write loop drains this client, so its one-slot buffer stays full.
	c := &conn{ws: <-accepted, send: make(chan []byte, 1), done: make(chan struct{})}
	c.send <- []byte("pending")
	srv.mu.Lock()
	srv.clients[c] = struct{}{}
	srv.mu.Unlock()

	srv.reject(c, Envelope{Req: "r1"}, ErrMalformedFrame)

	_ = peer.SetReadDeadline(time.Now().Add(waitTimeout))
	_, _, err = peer.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.ClosePolicyViolation {
		t.Fatalf("read = %v, want close %d", err, websocket.ClosePolicyViolation)
	}
	select {
	case <-c.done:
	default:
		t.Error("client not marked done")
	}
	srv.mu.Lock()
	_, registered := srv.clients[c]
	srv.mu.Unlock()
	if registered {
		t.Error("client still registered after overflow")
	}
}
