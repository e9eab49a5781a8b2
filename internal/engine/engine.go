// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/modkit/modkit/internal/installer"
	"github.com/modkit/modkit/internal/metrics"
	"github.com/modkit/modkit/internal/registry"
	"github.com/modkit/modkit/internal/updatecheck"
)

var (
	// ErrUnknownOperation is returned by Cancel for an id that is not running.
	ErrUnknownOperation = errors.New("no such operation")

	// ErrShutdown is returned for commands dispatched after Shutdown.
	ErrShutdown = errors.New("engine is shut down")

	// ErrNoDownload is returned by update when the mod publishes no direct
	// download.
	ErrNoDownload = errors.New("mod has no direct download")
)

type (
	// Engine runs commands against one registry.
	Engine struct {
		reg     *registry.Registry
		pool    *installer.Pool
		checker *updatecheck.Checker
		metrics *metrics.Metrics
		logger  *log.Logger

		policy  installer.Policy
		enable  bool
		tempDir string

		ctx    context.Context
		cancel context.CancelFunc
		wg     sync.WaitGroup

		mu     sync.Mutex
		ops    map[string]context.CancelFunc
		closed bool

		subMu   sync.Mutex
		subs    map[int]func(Event)
		nextSub int
	}

	// Option configures an Engine.
	Option func(*Engine)
)

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics records operation metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithDefaultPolicy sets the replace policy for install commands that name
// none.
func WithDefaultPolicy(p installer.Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithEnableOnInstall enables freshly installed mods unless the command says
// otherwise.
func WithEnableOnInstall(enable bool) Option {
	return func(e *Engine) {
		e.enable = enable
	}
}

// WithTempDir sets where update downloads are buffered. The default is the
// system temporary directory.
func WithTempDir(dir string) Option {
	return func(e *Engine) {
		e.tempDir = dir
	}
}

// New creates an Engine installing through pool and checking with checker.
// It becomes the observer of the pool's registry so that every mutation is
// published as a snapshot event.
func New(pool *installer.Pool, checker *updatecheck.Checker, opts ...Option) *Engine {
	e := &Engine{
		reg:     pool.Installer().Registry(),
		pool:    pool,
		checker: checker,
		logger:  log.NewWithOptions(os.Stderr, log.Options{Prefix: "engine"}),
		policy:  installer.PolicyReplaceIfNewer,
		ops:     make(map[string]context.CancelFunc),
		subs:    make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.reg.SetObserver(e.observe)
	if e.metrics != nil {
		e.metrics.ObserveSnapshot(e.reg.Snapshot())
	}
	return e
}

// Registry returns the registry the engine operates on.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// Subscribe registers fn for every subsequent event and returns a function
// that removes it. fn may be called from several goroutines, sometimes with
// the registry locked, so it must return quickly and must not call back into
// the engine or the registry.
func (e *Engine) Subscribe(fn func(Event)) (unsubscribe func()) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		delete(e.subs, id)
	}
}

// Dispatch validates cmd and starts it. Long-running commands return their
// operation id after an accepted event has been emitted. Invalid commands
// are answered with a failed event carrying cmd.Req and the error is also
// returned.
func (e *Engine) Dispatch(cmd Command) (string, error) {
	if err := cmd.Validate(); err != nil {
		e.fail(Event{Req: cmd.Req, Command: cmd.Kind}, err)
		return "", err
	}

	switch cmd.Kind {
	case CmdSnapshot:
		snap := e.reg.Snapshot()
		e.emit(Event{Kind: EventSnapshot, Req: cmd.Req, Command: cmd.Kind, Snapshot: &snap})
		return "", nil
	case CmdCancel:
		if err := e.Cancel(cmd.Op); err != nil {
			e.fail(Event{Req: cmd.Req, Op: cmd.Op, Command: cmd.Kind}, err)
			return "", err
		}
		e.emit(Event{Kind: EventAccepted, Req: cmd.Req, Op: cmd.Op, Command: cmd.Kind})
		return cmd.Op, nil
	}

	op := uuid.NewString()
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.fail(Event{Req: cmd.Req, Command: cmd.Kind}, ErrShutdown)
		return "", ErrShutdown
	}
	ctx, cancel := context.WithCancel(e.ctx)
	e.ops[op] = cancel
	e.wg.Add(1)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.OperationStarted()
	}
	e.logger.Debug("accepted", "op", op, "command", cmd.Kind, "req", cmd.Req)
	e.emit(Event{Kind: EventAccepted, Req: cmd.Req, Op: op, Command: cmd.Kind})

	go func() {
		defer e.wg.Done()
		defer e.finish(op)
		e.run(ctx, op, cmd)
	}()
	return op, nil
}

// Cancel requests cancellation of a running operation. The operation still
// ends with exactly one completed or failed event.
func (e *Engine) Cancel(op string) error {
	e.mu.Lock()
	cancel, ok := e.ops[op]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}
	e.logger.Info("cancel requested", "op", op)
	cancel()
	return nil
}

// Running returns the ids of operations that have not finished yet.
func (e *Engine) Running() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Sorted(maps.Keys(e.ops))
}

// Shutdown refuses new commands, cancels every running operation and waits
// for them to finish or for ctx to end.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.reg.SetObserver(nil)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for operations: %w", ctx.Err())
	}
}

func (e *Engine) run(ctx context.Context, op string, cmd Command) {
	base := Event{Req: cmd.Req, Op: op, Command: cmd.Kind}
	var (
		done Event
		err  error
	)
	switch cmd.Kind {
	case CmdInstall:
		done, err = e.install(ctx, base, cmd)
	case CmdUpdate:
		done, err = e.update(ctx, base, cmd)
	case CmdUninstall:
		done, err = e.uninstall(ctx, cmd)
	case CmdCheckUpdates:
		done, err = e.checkUpdates(ctx, base, cmd)
	case CmdSetEnabled:
		done, err = e.setEnabled(cmd)
	}
	if err != nil {
		e.logger.Warn("operation failed", "op", op, "command", cmd.Kind, "err", err)
		e.fail(base, err)
		return
	}
	done.Kind, done.Req, done.Op, done.Command = EventCompleted, cmd.Req, op, cmd.Kind
	e.logger.Info("operation completed", "op", op, "command", cmd.Kind, "summary", done.Summary)
	e.emit(done)
}

func (e *Engine) finish(op string) {
	e.mu.Lock()
	if cancel, ok := e.ops[op]; ok {
		cancel()
		delete(e.ops, op)
	}
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.OperationFinished()
	}
}

func (e *Engine) fail(ev Event, err error) {
	ev.Kind = EventFailed
	ev.FailKind = FailureKind(err)
	ev.Message = err.Error()
	e.emit(ev)
}

func (e *Engine) emit(ev Event) {
	e.subMu.Lock()
	subs := slices.Collect(maps.Values(e.subs))
	e.subMu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// observe runs with the registry locked.
func (e *Engine) observe(snap registry.Snapshot) {
	if e.metrics != nil {
		e.metrics.ObserveSnapshot(snap)
	}
	e.emit(Event{Kind: EventSnapshot, Snapshot: &snap})
}
