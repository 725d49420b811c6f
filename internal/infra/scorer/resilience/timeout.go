package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when an attempt exceeds its deadline.
var ErrTimeout = errors.New("call timed out")

// WithTimeout bounds each call to d. The wrapper returns at the deadline even
// if fn ignores its context. d <= 0 disables the bound.
func WithTimeout[T any](d time.Duration, fn Func[T]) Func[T] {
	if d <= 0 {
		return fn
	}
	return func(ctx context.Context) (T, error) {
		ctx, cancel := context.WithTimeoutCause(ctx, d, ErrTimeout)
		defer cancel()

		type result struct {
			v   T
			err error
		}
		done := make(chan result, 1)
		go func() {
			v, err := fn(ctx)
			done <- result{v, err}
		}()

		select {
		case r := <-done:
			if r.err != nil && errors.Is(context.Cause(ctx), ErrTimeout) {
				return r.v, fmt.Errorf("%w after %s: %w", ErrTimeout, d, r.err)
			}
			return r.v, r.err
		case <-ctx.Done():
			var zero T
			if errors.Is(context.Cause(ctx), ErrTimeout) {
				return zero, fmt.Errorf("%w after %s", ErrTimeout, d)
			}
			return zero, ctx.Err()
		}
	}
}
