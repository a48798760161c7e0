package future

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/wippyai/asyncsm/errors"
)

// Future is the read side of an asynchronous outcome.
type Future[T any] struct {
	value     T
	err       error
	done      chan struct{}
	callbacks []func()
	mu        sync.Mutex
	completed atomic.Bool
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// IsCompleted reports whether the outcome is available.
func (f *Future[T]) IsCompleted() bool {
	return f.completed.Load()
}

// OnCompleted registers cb to run once the future completes.
// If the future is already complete cb runs immediately on the caller's goroutine.
func (f *Future[T]) OnCompleted(cb func()) {
	if cb == nil {
		return
	}
	f.mu.Lock()
	if !f.completed.Load() {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	cb()
}

// Done returns a channel that is closed when the future completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result returns the outcome without blocking.
// A pending future reports a not_completed error.
func (f *Future[T]) Result() (T, error) {
	if !f.completed.Load() {
		var zero T
		return zero, errors.NotCompleted(errors.PhaseComplete)
	}
	return f.value, f.err
}

// Err returns the failure of a completed future, or nil.
func (f *Future[T]) Err() error {
	if !f.completed.Load() {
		return nil
	}
	return f.err
}

// Await blocks until the future completes or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *Future[T]) complete(value T, err error) bool {
	f.mu.Lock()
	if f.completed.Load() {
		f.mu.Unlock()
		return false
	}
	f.value = value
	f.err = err
	f.completed.Store(true)
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	return true
}

// Promise is the write side of a Future.
type Promise[T any] struct {
	future *Future[T]
}

// NewPromise creates a pending promise and its future.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{future: newFuture[T]()}
}

// Future returns the read side.
func (p *Promise[T]) Future() *Future[T] {
	return p.future
}

// SetResult completes the future with a value. Panics if already completed.
func (p *Promise[T]) SetResult(value T) {
	if !p.future.complete(value, nil) {
		panic(errors.AlreadyCompleted(errors.PhaseComplete))
	}
}

// SetError completes the future with a failure. Panics if already completed
// or if err is nil.
func (p *Promise[T]) SetError(err error) {
	if err == nil {
		panic(errors.InvalidInput(errors.PhaseComplete, "SetError called with nil error"))
	}
	var zero T
	if !p.future.complete(zero, err) {
		panic(errors.AlreadyCompleted(errors.PhaseComplete))
	}
}

// TrySetResult completes the future unless it is already completed.
func (p *Promise[T]) TrySetResult(value T) bool {
	return p.future.complete(value, nil)
}

// TrySetError fails the future unless it is already completed.
func (p *Promise[T]) TrySetError(err error) bool {
	if err == nil {
		return false
	}
	var zero T
	return p.future.complete(zero, err)
}

// Completed returns a future that already holds value.
func Completed[T any](value T) *Future[T] {
	f := newFuture[T]()
	f.complete(value, nil)
	return f
}

// Failed returns a future that already holds err.
func Failed[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.complete(zero, err)
	return f
}
