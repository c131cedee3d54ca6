package offload

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	tferrors "github.com/vnykmshr/tickflow/pkg/common/errors"
)

// ErrPending is returned by Future.Value before the work has finished.
var ErrPending = errors.New("offload: result not ready")

// Future holds the result of work submitted with Go. It is a
// condition.Condition: a routine can yield it and is resumed on the first
// Tick after the work finishes.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error

	// fired is only touched by the goroutine polling the condition.
	fired bool
}

// Go runs fn on the pool and returns a Future for its result.
func Go[T any](p *Pool, fn func(ctx context.Context) (T, error)) (*Future[T], error) {
	return GoWithContext(context.Background(), p, fn)
}

// GoWithContext is like Go but passes ctx to fn.
func GoWithContext[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (*Future[T], error) {
	if fn == nil {
		return nil, tferrors.NewValidationError("offload", "fn", nil, "cannot be nil")
	}
	f := &Future[T]{done: make(chan struct{})}
	err := p.SubmitWithContext(ctx, TaskFunc(func(ctx context.Context) error {
		return f.resolve(ctx, fn)
	}))
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Future[T]) resolve(ctx context.Context, fn func(context.Context) (T, error)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v\nStack trace:\n%s", r, debug.Stack())
			f.err = err
		}
		close(f.done)
	}()
	f.value, f.err = fn(ctx)
	f.err = timedOut(ctx, f.err)
	return f.err
}

// IsSatisfied reports whether the work has finished. It never blocks.
func (f *Future[T]) IsSatisfied() bool {
	if f.fired {
		return true
	}
	select {
	case <-f.done:
		f.fired = true
		return true
	default:
		return false
	}
}

// IsFinished reports whether IsSatisfied has returned true.
func (f *Future[T]) IsFinished() bool {
	return f.fired
}

// Done returns a channel closed when the work has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Value returns the result of the work, or ErrPending if it has not
// finished.
func (f *Future[T]) Value() (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
		var zero T
		return zero, ErrPending
	}
}

// Wait blocks until the work finishes or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
