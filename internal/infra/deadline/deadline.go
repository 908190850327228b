package deadline

import (
	"context"
	"fmt"
	"time"

	"omnisearch/internal/domain"
)

// Run calls fn with a context bounded by timeout and returns when fn returns or
// the context ends, whichever happens first. fn keeps running in the background
// if it ignores cancellation. A panic inside fn is returned as an error.
func Run(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	_, err := Value(ctx, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Watch is Run that also returns a channel closed once fn has actually returned.
// After a timeout, callers wait on it before undoing side effects fn may still
// produce.
func Watch(ctx context.Context, timeout time.Duration, fn func(context.Context) error) (<-chan struct{}, error) {
	_, finished, err := watch(ctx, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return finished, err
}

// Value is Run for functions that produce a result.
func Value[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	value, _, err := watch(ctx, timeout, fn)
	return value, err
}

func watch[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, <-chan struct{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", domain.ErrOperationPanicked, r)}
			}
		}()
		value, err := fn(ctx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		return out.value, finished, out.err
	case <-ctx.Done():
		select {
		case out := <-done:
			return out.value, finished, out.err
		default:
		}
		var zero T
		return zero, finished, ctx.Err()
	}
}
