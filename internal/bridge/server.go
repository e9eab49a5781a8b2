// SPDX-License-Identifier: MPL-2.0

package bridge

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/modkit/modkit/internal/core/serverbase"
	"github.com/modkit/modkit/internal/engine"
	"github.com/modkit/modkit/internal/metrics"
)

const (
	// WebSocketPath is where clients connect.
	WebSocketPath = "/ws"
	// MetricsPath serves Prometheus metrics to token holders.
	MetricsPath = "/metrics"
)

type (
	// Config configures a Server.
	Config struct {
		// Host is the interface to listen on. Only loopback hosts make sense:
		// the bridge trusts token holders with filesystem paths.
		Host string
		// Port 0 picks a free port.
		Port int
		// Token is the bearer token clients must present. A random one is
		// generated when empty.
		Token           string
		StartupTimeout  time.Duration
		ShutdownTimeout time.Duration
		WriteTimeout    time.Duration
		PingInterval    time.Duration
		MaxMessageSize  int64
		// SendBuffer is how many outbound frames a client may lag behind
		// before it is disconnected.
		SendBuffer int
	}

	// Server accepts bridge clients and relays engine events to all of them.
	Server struct {
		*serverbase.Base

		cfg      Config
		engine   *engine.Engine
		metrics  *metrics.Metrics
		logger   *log.Logger
		upgrader websocket.Upgrader

		mu          sync.Mutex
		listener    net.Listener
		httpSrv     *http.Server
		addr        string
		clients     map[*conn]struct{}
		unsubscribe func()
	}

	// ServerOption configures a Server.
	ServerOption func(*Server)

	// conn is one connected client.
	conn struct {
		ws   *websocket.Conn
		send chan []byte
		once sync.Once
		done chan struct{}
	}
)

// DefaultConfig returns a loopback configuration with a random port.
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		StartupTimeout:  5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		WriteTimeout:    10 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  DefaultMaxMessageSize,
		SendBuffer:      256,
	}
}

// WithLogger sets the server logger.
func WithLogger(l *log.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics exposes m at MetricsPath.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates a server relaying for eng. Zero Config fields take their
// DefaultConfig values.
func NewServer(eng *engine.Engine, cfg Config, opts ...ServerOption) *Server {
	def := DefaultConfig()
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = def.StartupTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}

	s := &Server{
		Base:    serverbase.NewBase(serverbase.WithErrorBuffer(4)),
		cfg:     cfg,
		engine:  eng,
		logger:  log.NewWithOptions(os.Stderr, log.Options{Prefix: "bridge"}),
		clients: make(map[*conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		// Authentication is by bearer token, not by origin.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start listens and begins serving. It returns once the server is running.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Begin(ctx); err != nil {
		return err
	}

	if s.cfg.Token == "" {
		token, err := generateToken()
		if err != nil {
			s.Fail(err)
			return err
		}
		s.cfg.Token = token
	}

	startupCtx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var lc net.ListenConfig
	listener, err := lc.Listen(startupCtx, "tcp", addr)
	if err != nil {
		err = fmt.Errorf("failed to listen on %s: %w", addr, err)
		s.Fail(err)
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, s.handleWebSocket)
	if s.metrics != nil {
		mux.Handle(MetricsPath, s.requireToken(s.metrics.Handler()))
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.Context() },
	}

	s.mu.Lock()
	s.listener = listener
	s.httpSrv = srv
	s.addr = listener.Addr().String()
	s.unsubscribe = s.engine.Subscribe(s.broadcast)
	s.mu.Unlock()

	s.Go(func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Report(fmt.Errorf("serve error: %w", err))
		}
	})

	s.Ready()
	s.logger.Info("bridge listening", "address", s.addr)
	return nil
}

// Stop disconnects every client and shuts the listener down. It is safe to
// call more than once.
func (s *Server) Stop() error {
	if !s.BeginStop() {
		return nil
	}

	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	srv := s.httpSrv
	clients := make([]*conn, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	var shutdownErr error
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		shutdownErr = srv.Shutdown(ctx)
	}
	for _, c := range clients {
		s.drop(c, websocket.CloseGoingAway, "server shutting down")
	}

	s.Wait()
	s.Stopped()
	s.logger.Info("bridge stopped")
	return shutdownErr
}

// Address returns host:port once started.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// URL returns the WebSocket URL clients dial.
func (s *Server) URL() string {
	return "ws://" + s.Address() + WebSocketPath
}

// Token returns the bearer token clients must present.
func (s *Server) Token() string {
	return s.cfg.Token
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) authorized(r *http.Request) bool {
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.Token)) == 1
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			http.Error(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
		return
	}
	if err := checkHandshake(r.Header.Get(ProtocolHeader)); err != nil {
		w.Header().Set(ProtocolHeader, strconv.Itoa(ProtocolVersion))
		http.Error(w, err.Error(), http.StatusUpgradeRequired)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, http.Header{ProtocolHeader: {strconv.Itoa(ProtocolVersion)}})
	if err != nil {
		s.logger.Debug("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	ws.SetReadLimit(s.cfg.MaxMessageSize)

	c := &conn{ws: ws, send: make(chan []byte, s.cfg.SendBuffer), done: make(chan struct{})}
	s.mu.Lock()
	if !s.IsRunning() {
		s.mu.Unlock()
		_ = ws.Close()
		return
	}
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.logger.Info("client connected", "remote", r.RemoteAddr)

	s.Go(func() { s.writeLoop(c) })
	s.Go(func() { s.readLoop(c) })
}

// readLoop decodes commands until the connection ends. Frames that cannot be
// decoded are answered with a failed event to the sender only.
func (s *Server) readLoop(c *conn) {
	defer s.drop(c, websocket.CloseNormalClosure, "")

	readTimeout := 2 * s.cfg.PingInterval
	_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		kind, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("read error", "err", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
		if kind != websocket.BinaryMessage {
			s.reject(c, Envelope{}, fmt.Errorf("%w: text frames are not accepted", ErrMalformedFrame))
			continue
		}

		env, err := Decode(msg)
		if err != nil {
			if errors.Is(err, ErrProtocolMismatch) {
				s.drop(c, websocket.CloseProtocolError, err.Error())
				return
			}
			s.reject(c, env, err)
			continue
		}
		cmd, err := CommandFromEnvelope(env)
		if err != nil {
			s.reject(c, env, err)
			continue
		}
		// Validation failures are published by the engine itself.
		_, _ = s.engine.Dispatch(cmd)
	}
}

func (s *Server) writeLoop(c *conn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
				s.logger.Debug("write failed", "err", err)
				s.drop(c, websocket.CloseGoingAway, "")
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.drop(c, websocket.CloseGoingAway, "")
				return
			}
		case <-c.done:
			return
		}
	}
}

// broadcast runs as an engine subscriber and must not block. Clients whose
// buffer is full are disconnected rather than silently skipped.
func (s *Server) broadcast(ev engine.Event) {
	env, err := EventEnvelope(ev)
	if err != nil {
		s.logger.Error("encoding event", "kind", ev.Kind, "op", ev.Op, "err", err)
		return
	}
	data, err := Encode(env)
	if err != nil {
		s.logger.Error("encoding event", "kind", ev.Kind, "op", ev.Op, "err", err)
		return
	}

	s.mu.Lock()
	var lagging []*conn
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			lagging = append(lagging, c)
		}
	}
	s.mu.Unlock()

	for _, c := range lagging {
		s.evict(c, ev.Kind)
	}
}

// evict disconnects a client whose send buffer is full. The close handshake
// runs on a tracked goroutine so that Stop waits for it.
func (s *Server) evict(c *conn, kind engine.EventKind) {
	s.logger.Warn("client too slow, disconnecting", "undelivered", kind)
	s.Go(func() { s.drop(c, websocket.ClosePolicyViolation, "event buffer overflow") })
}

// reject answers an undecodable frame to its sender.
func (s *Server) reject(c *conn, env Envelope, cause error) {
	s.logger.Debug("rejected frame", "err", cause)
	reply, err := NewEnvelope(string(engine.EventFailed), env.Req, "", FailedBody{Kind: FailProtocol, Message: cause.Error()})
	if err != nil {
		s.logger.Error("encoding rejection", "req", env.Req, "err", err)
		return
	}
	data, err := Encode(reply)
	if err != nil {
		s.logger.Error("encoding rejection", "req", env.Req, "err", err)
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		s.evict(c, engine.EventFailed)
	}
}

// drop removes c and closes its connection once.
func (s *Server) drop(c *conn, code int, reason string) {
	c.once.Do(func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		close(c.done)

		deadline := time.Now().Add(time.Second)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.ws.Close()
		s.logger.Debug("client disconnected", "code", code)
	})
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
