package tasks

import (
	"context"
	"sync"
)

// Runner owns an application-lifetime task scope. Work submitted here is
// decoupled from any screen or request context: it keeps running after the
// submitting caller has gone away, and is only cancelled when the daemon
// itself shuts down.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRunner creates a runner rooted in the given parent context.
func NewRunner(parent context.Context) *Runner {
	ctx, cancel := context.WithCancel(parent)
	return &Runner{ctx: ctx, cancel: cancel}
}

// Go submits fn to the application scope. Returns false if the runner has
// already been closed.
func (r *Runner) Go(fn func(ctx context.Context)) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		fn(r.ctx)
	}()
	return true
}

// Close cancels the scope and waits for in-flight tasks, or gives up when
// ctx expires.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
