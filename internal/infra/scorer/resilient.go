package scorer

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vietddude/flightontime/internal/core/domain"
	"github.com/vietddude/flightontime/internal/infra/scorer/resilience"
	"github.com/vietddude/flightontime/internal/refdata"
)

// Transport performs one raw scoring call.
type Transport interface {
	Predict(ctx context.Context, req domain.PredictionRequest) (*Response, error)
}

// AttemptObserver is notified of every attempt outcome.
type AttemptObserver interface {
	ObserveScorerAttempt(result string)
}

// Config configures a ResilientClient.
type Config struct {
	Timeout time.Duration
	Retry   resilience.RetryPolicy
}

// ResilientClient wraps a Transport with timeout, circuit breaker and retry,
// and maps failures onto domain errors.
type ResilientClient struct {
	transport Transport
	breaker   *resilience.Breaker
	dir       *refdata.Directory
	cfg       Config
	clock     clockwork.Clock
	observer  AttemptObserver
	logger    *slog.Logger
}

// NewResilientClient creates a client. observer may be nil.
func NewResilientClient(
	transport Transport,
	breaker *resilience.Breaker,
	dir *refdata.Directory,
	cfg Config,
	clock clockwork.Clock,
	observer AttemptObserver,
) *ResilientClient {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = IsTransient
	}
	return &ResilientClient{
		transport: transport,
		breaker:   breaker,
		dir:       dir,
		cfg:       cfg,
		clock:     clock,
		observer:  observer,
		logger:    slog.Default().With("component", "scorer"),
	}
}

// Breaker exposes the shared breaker for health reporting.
func (c *ResilientClient) Breaker() *resilience.Breaker {
	return c.breaker
}

// Score runs the request through the resilience chain and returns an enriched outcome.
func (c *ResilientClient) Score(ctx context.Context, req domain.PredictionRequest) (*domain.Outcome, error) {
	start := c.clock.Now()

	attempt := func(ctx context.Context) (*Response, error) {
		return c.transport.Predict(ctx, req)
	}
	call := resilience.WithRetry(c.cfg.Retry,
		resilience.WithCircuitBreaker(c.breaker, IsTransient,
			c.observed(resilience.WithTimeout(c.cfg.Timeout, attempt))))

	resp, err := call(ctx)
	if err != nil {
		derr := toDomainError(err)
		c.logger.Warn("Scoring failed",
			"airline", req.Airline,
			"origin", req.Origin,
			"destination", req.Destination,
			"error", derr,
		)
		return nil, derr
	}

	out := &domain.Outcome{
		Class:              domain.PredictionClass(*resp.Prediction),
		DelayProbability:   resp.DelayProbability,
		Confidence:         resp.Confidence,
		DistanceKm:         c.resolveDistance(req, resp.DistanceKm),
		WeatherOrigin:      resp.WeatherOrigin,
		WeatherDestination: resp.WeatherDestination,
		Metadata:           make(map[string]any, len(resp.Metadata)+6),
	}
	for k, v := range resp.Metadata {
		out.Metadata[k] = v
	}
	c.enrich(out, req, c.clock.Since(start))
	return out, nil
}

func (c *ResilientClient) observed(fn resilience.Func[*Response]) resilience.Func[*Response] {
	if c.observer == nil {
		return fn
	}
	return func(ctx context.Context) (*Response, error) {
		resp, err := fn(ctx)
		c.observer.ObserveScorerAttempt(attemptResult(err))
		return resp, err
	}
}

// resolveDistance prefers the scorer's figure, then the great-circle distance,
// then the caller's hint.
func (c *ResilientClient) resolveDistance(req domain.PredictionRequest, scored *float64) float64 {
	if scored != nil {
		return *scored
	}
	if c.dir != nil {
		if km, ok := c.dir.DistanceKm(req.Origin, req.Destination); ok {
			return km
		}
	}
	if req.DistanceKmHint != nil {
		return *req.DistanceKmHint
	}
	return 0
}

func (c *ResilientClient) enrich(out *domain.Outcome, req domain.PredictionRequest, elapsed time.Duration) {
	out.Metadata[domain.MetaLatencyMS] = elapsed.Milliseconds()
	if c.dir == nil {
		return
	}
	if name, ok := c.dir.AirlineName(req.Airline); ok {
		out.Metadata[domain.MetaAirlineName] = name
	}
	if ap, ok := c.dir.AirportInfo(req.Origin); ok {
		out.Metadata[domain.MetaOriginName] = ap.Name
		out.Metadata[domain.MetaOriginCity] = ap.City
	}
	if ap, ok := c.dir.AirportInfo(req.Destination); ok {
		out.Metadata[domain.MetaDestinationName] = ap.Name
		out.Metadata[domain.MetaDestinationCity] = ap.City
	}
}
