// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrNotStartable is returned by Begin when the component already left the
// created state.
var ErrNotStartable = errors.New("component cannot be started")

// Base carries the lifecycle of a component that embeds it. An instance is
// single-use: once stopped or failed, create a new one.
type Base struct {
	state atomic.Int32

	mu      sync.Mutex
	lastErr error

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	readyCh chan struct{}
	errCh   chan error
}

// NewBase creates a Base in the created state.
func NewBase(opts ...Option) *Base {
	b := &Base{
		readyCh: make(chan struct{}),
		errCh:   make(chan error, 1),
	}
	b.state.Store(int32(StateCreated))
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current state without locking.
func (b *Base) State() State {
	return State(b.state.Load())
}

// IsRunning reports whether the component is running.
func (b *Base) IsRunning() bool {
	return b.State() == StateRunning
}

// Err delivers asynchronous errors, such as a listener dying after startup.
func (b *Base) Err() <-chan error {
	return b.errCh
}

// LastError returns the error that failed the component, if any.
func (b *Base) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Begin moves from created to starting and creates the lifecycle context.
// The context is detached from ctx: ctx only guards the call itself.
func (b *Base) Begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("canceled before start: %w", err)
		b.Fail(err)
		return err
	}
	if !b.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("%w: state is %s", ErrNotStartable, b.State())
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	return nil
}

// Ready moves from starting to running and releases WaitReady callers.
func (b *Base) Ready() {
	if b.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(b.readyCh)
	}
}

// Fail records err, moves to failed and cancels the lifecycle context.
func (b *Base) Fail(err error) {
	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()

	b.state.Store(int32(StateFailed))
	if b.cancel != nil {
		b.cancel()
	}
	b.Report(err)
}

// BeginStop moves a starting or running component to stopping and cancels
// its context. It returns false when there is nothing to stop; a component
// that never started is marked stopped directly.
func (b *Base) BeginStop() bool {
	for {
		current := b.State()
		switch current {
		case StateCreated:
			if b.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return false
			}
		case StateStarting, StateRunning:
			if b.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				if b.cancel != nil {
					b.cancel()
				}
				return true
			}
		default:
			return false
		}
	}
}

// Stopped marks the component as stopped. Call it after Wait returns.
func (b *Base) Stopped() {
	b.state.Store(int32(StateStopped))
}

// WaitReady blocks until Ready is called or ctx ends.
func (b *Base) WaitReady(ctx context.Context) error {
	select {
	case <-b.readyCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for readiness: %w", ctx.Err())
	}
}

// Context returns the lifecycle context, nil before Begin.
func (b *Base) Context() context.Context {
	return b.ctx
}

// Go runs fn on a tracked goroutine.
func (b *Base) Go(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

// Wait blocks until every goroutine started with Go has returned.
func (b *Base) Wait() {
	b.wg.Wait()
}

// Report delivers err on the Err channel, dropping it when the buffer is full.
func (b *Base) Report(err error) {
	select {
	case b.errCh <- err:
	default:
	}
}
