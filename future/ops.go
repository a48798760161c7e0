package future

import (
	"context"
	"time"

	"github.com/wippyai/asyncsm/errors"
)

// Op is a pending operation that produces a value when executed.
type Op[T any] interface {
	Execute(ctx context.Context) (T, error)
}

// OpFunc adapts a function to Op.
type OpFunc[T any] func(ctx context.Context) (T, error)

func (f OpFunc[T]) Execute(ctx context.Context) (T, error) {
	return f(ctx)
}

// Go runs fn on a new goroutine and returns a future for its outcome.
// A panic in fn fails the future with the recovered value.
// If ctx is already done fn is not started.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	if err := ctx.Err(); err != nil {
		return Failed[T](err)
	}
	p := NewPromise[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.TrySetError(errors.FromPanic(r))
			}
		}()
		v, err := fn(ctx)
		if err != nil {
			p.SetError(err)
			return
		}
		p.SetResult(v)
	}()
	return p.Future()
}

// Run executes op on a new goroutine.
func Run[T any](ctx context.Context, op Op[T]) *Future[T] {
	return Go(ctx, op.Execute)
}

// Timeout returns a future that completes with f's outcome, or with
// context.DeadlineExceeded if f has not completed within d.
func Timeout[T any](f *Future[T], d time.Duration) *Future[T] {
	if f.IsCompleted() {
		return f
	}
	p := NewPromise[T]()
	timer := time.AfterFunc(d, func() {
		p.TrySetError(context.DeadlineExceeded)
	})
	f.OnCompleted(func() {
		timer.Stop()
		v, err := f.Result()
		if err != nil {
			p.TrySetError(err)
			return
		}
		p.TrySetResult(v)
	})
	return p.Future()
}
