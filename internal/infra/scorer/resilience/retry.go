package resilience

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy defines retry behavior.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Retryable reports whether an error is worth another attempt. nil retries nothing.
	Retryable func(error) bool
}

// DefaultRetryPolicy provides sensible defaults.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     5 * time.Second,
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.InitialDelay
	if base < time.Millisecond {
		base = time.Millisecond
	}
	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	retries := 0
	if p.MaxAttempts > 1 {
		retries = p.MaxAttempts - 1
	}
	return retry.WithMaxRetries(uint64(retries), b)
}

// WithRetry retries fn with exponential backoff until it succeeds, returns a
// non-retryable error, or attempts run out. The last error is returned as-is.
func WithRetry[T any](p RetryPolicy, fn Func[T]) Func[T] {
	return func(ctx context.Context) (T, error) {
		var out T
		err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
			v, err := fn(ctx)
			if err != nil {
				if p.Retryable != nil && p.Retryable(err) {
					return retry.RetryableError(err)
				}
				return err
			}
			out = v
			return nil
		})
		return out, err
	}
}
