// Package resilience provides composable call wrappers for the scorer client.
//
// This package contains:
//   - Breaker: a circuit breaker with consecutive and sliding-window failure rules
//   - WithRetry: exponential backoff built on go-retry
//   - WithTimeout: a per-attempt deadline
//
// Wrappers compose as WithRetry(WithCircuitBreaker(WithTimeout(call))), so every
// attempt gets its own deadline and feeds the breaker individually.
package resilience

import "context"

// Func is a single call that can be wrapped.
type Func[T any] func(ctx context.Context) (T, error)
