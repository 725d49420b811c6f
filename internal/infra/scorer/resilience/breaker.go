package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrOpen is returned without invoking the wrapped call while the breaker is open.
var ErrOpen = errors.New("circuit open")

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// BreakerConfig holds thresholds. Zero values fall back to defaults.
type BreakerConfig struct {
	ConsecutiveFailures  int
	FailureRateThreshold float64 // 0 disables the rate rule
	WindowSize           int
	MinimumCalls         int
	OpenTimeout          time.Duration
	HalfOpenMaxCalls     int
}

// DefaultBreakerConfig provides sensible defaults.
var DefaultBreakerConfig = BreakerConfig{
	ConsecutiveFailures: 5,
	WindowSize:          10,
	MinimumCalls:        10,
	OpenTimeout:         30 * time.Second,
	HalfOpenMaxCalls:    1,
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	d := DefaultBreakerConfig
	if c.ConsecutiveFailures <= 0 {
		c.ConsecutiveFailures = d.ConsecutiveFailures
	}
	if c.WindowSize <= 0 {
		c.WindowSize = d.WindowSize
	}
	if c.MinimumCalls <= 0 || c.MinimumCalls > c.WindowSize {
		c.MinimumCalls = c.WindowSize
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = d.OpenTimeout
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = d.HalfOpenMaxCalls
	}
	return c
}

// StateChangeFunc observes transitions. It runs outside the breaker lock, and
// transitions are delivered one at a time in the order they happened. It must
// not call Allow or Record.
type StateChangeFunc func(from, to State)

type stateChange struct{ from, to State }

// Breaker is safe for concurrent use. All state sits behind one mutex.
type Breaker struct {
	mu    sync.Mutex
	cfg   BreakerConfig
	clock clockwork.Clock

	state       State
	openedAt    time.Time
	generation  uint64
	consecutive int

	// count-based ring of recent outcomes, true = failure
	window   []bool
	pos      int
	filled   int
	failures int

	halfOpenInFlight int

	listeners []StateChangeFunc
	pending   []stateChange
	notifyMu  sync.Mutex // serializes delivery of pending
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig, clock clockwork.Clock) *Breaker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	cfg = cfg.withDefaults()
	return &Breaker{
		cfg:    cfg,
		clock:  clock,
		window: make([]bool, cfg.WindowSize),
	}
}

// OnStateChange registers a transition observer. Register before first use.
func (b *Breaker) OnStateChange(fn StateChangeFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// State returns the current state. An expired open state reads as half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.cooledDown() {
		return StateHalfOpen
	}
	return b.state
}

// Allow reserves permission for one call. The returned generation must be passed
// to Record or Release so outcomes from a previous state are discarded.
func (b *Breaker) Allow() (uint64, error) {
	b.mu.Lock()
	if b.state == StateOpen {
		if !b.cooledDown() {
			b.mu.Unlock()
			return 0, ErrOpen
		}
		b.transition(StateHalfOpen)
	}
	if b.state == StateHalfOpen {
		if b.halfOpenInFlight >= b.cfg.HalfOpenMaxCalls {
			b.mu.Unlock()
			b.notify()
			return 0, ErrOpen
		}
		b.halfOpenInFlight++
	}
	gen := b.generation
	b.mu.Unlock()

	b.notify()
	return gen, nil
}

// Record reports the outcome of an allowed call.
func (b *Breaker) Record(gen uint64, success bool) {
	b.mu.Lock()
	if gen != b.generation {
		b.mu.Unlock()
		return
	}

	switch b.state {
	case StateClosed:
		b.observe(!success)
		if b.shouldTrip() {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.halfOpenInFlight--
		if success {
			b.transition(StateClosed)
		} else {
			b.transition(StateOpen)
		}
	}
	b.mu.Unlock()

	b.notify()
}

// Release returns a reservation without recording an outcome.
func (b *Breaker) Release(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen == b.generation && b.state == StateHalfOpen && b.halfOpenInFlight > 0 {
		b.halfOpenInFlight--
	}
}

// Counts returns the consecutive failure count and the sliding window totals.
func (b *Breaker) Counts() (consecutive, windowCalls, windowFailures int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutive, b.filled, b.failures
}

func (b *Breaker) cooledDown() bool {
	return b.clock.Now().Sub(b.openedAt) >= b.cfg.OpenTimeout
}

func (b *Breaker) observe(failure bool) {
	if failure {
		b.consecutive++
	} else {
		b.consecutive = 0
	}

	if b.filled == len(b.window) {
		if b.window[b.pos] {
			b.failures--
		}
	} else {
		b.filled++
	}
	b.window[b.pos] = failure
	if failure {
		b.failures++
	}
	b.pos = (b.pos + 1) % len(b.window)
}

func (b *Breaker) shouldTrip() bool {
	if b.consecutive >= b.cfg.ConsecutiveFailures {
		return true
	}
	if b.cfg.FailureRateThreshold <= 0 || b.filled < b.cfg.MinimumCalls {
		return false
	}
	return float64(b.failures)/float64(b.filled) >= b.cfg.FailureRateThreshold
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	b.pending = append(b.pending, stateChange{from: b.state, to: to})
	b.state = to
	b.generation++
	b.halfOpenInFlight = 0
	switch to {
	case StateOpen:
		b.openedAt = b.clock.Now()
	case StateClosed:
		b.consecutive = 0
		b.pos, b.filled, b.failures = 0, 0, 0
		clear(b.window)
	}
}

// notify drains queued transitions. Queuing under mu and draining under
// notifyMu keeps delivery in transition order across goroutines.
func (b *Breaker) notify() {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()

	b.mu.Lock()
	changes := b.pending
	b.pending = nil
	listeners := b.listeners
	b.mu.Unlock()

	for _, c := range changes {
		for _, fn := range listeners {
			fn(c.from, c.to)
		}
	}
}

// WithCircuitBreaker guards fn with b. isFailure decides which errors count
// against the breaker; nil treats every error as a failure. Caller
// cancellation is not recorded.
func WithCircuitBreaker[T any](b *Breaker, isFailure func(error) bool, fn Func[T]) Func[T] {
	return func(ctx context.Context) (T, error) {
		gen, err := b.Allow()
		if err != nil {
			var zero T
			return zero, err
		}

		v, err := fn(ctx)
		switch {
		case err == nil:
			b.Record(gen, true)
		case errors.Is(err, context.Canceled):
			b.Release(gen)
		case isFailure == nil || isFailure(err):
			b.Record(gen, false)
		default:
			b.Record(gen, true)
		}
		return v, err
	}
}
