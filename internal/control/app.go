// Package control wires the service together and owns its lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vietddude/flightontime/internal/api"
	"github.com/vietddude/flightontime/internal/batch"
	"github.com/vietddude/flightontime/internal/core/config"
	"github.com/vietddude/flightontime/internal/core/worker"
	"github.com/vietddude/flightontime/internal/health"
	"github.com/vietddude/flightontime/internal/history"
	"github.com/vietddude/flightontime/internal/infra/redis"
	"github.com/vietddude/flightontime/internal/infra/scorer"
	"github.com/vietddude/flightontime/internal/infra/scorer/resilience"
	"github.com/vietddude/flightontime/internal/infra/storage"
	"github.com/vietddude/flightontime/internal/infra/storage/memory"
	"github.com/vietddude/flightontime/internal/infra/storage/sqldb"
	"github.com/vietddude/flightontime/internal/metrics"
	"github.com/vietddude/flightontime/internal/prediction"
	"github.com/vietddude/flightontime/internal/refdata"
	"github.com/vietddude/flightontime/internal/stats"
)

// App holds every long-lived component.
type App struct {
	cfg     *config.AppConfig
	clock   clockwork.Clock
	metrics *metrics.Metrics
	dir     *refdata.Directory

	db          *sqldb.DB
	store       *memory.MemoryStorage
	redisClient *redis.Client

	breaker      *resilience.Breaker
	orchestrator *prediction.Orchestrator
	pipeline     *batch.Pipeline
	history      *history.Service
	stats        *stats.Aggregator
	pruner       *worker.Pruner

	httpServer *api.Server
	grpcHealth *health.Server
	log        *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Option customizes App construction.
type Option func(*options)

type options struct {
	clock     clockwork.Clock
	transport scorer.Transport
}

// WithClock replaces the real clock.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithTransport replaces the HTTP scorer transport.
func WithTransport(t scorer.Transport) Option {
	return func(o *options) { o.transport = t }
}

// New builds the application. Servers are created but not started.
func New(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*App, error) {
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		cfg:     cfg,
		clock:   o.clock,
		metrics: metrics.New(),
		log:     slog.Default().With("component", "app"),
	}

	// 1. Reference data
	dir, err := refdata.Load(cfg.Reference.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}
	a.dir = dir

	// 2. Storage
	var (
		runner storage.UnitOfWorkRunner
		repo   storage.PredictionRepository
		prune  storage.HistoryPruner
	)
	if cfg.Database.URL != "" {
		db, err := sqldb.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		a.db = db
		runner = db
		sqlRepo := sqldb.NewPredictionRepo(db)
		repo, prune = sqlRepo, sqlRepo
		a.log.Info("Using SQL storage", "driver", cfg.Database.Driver)
	} else {
		a.store = memory.NewMemoryStorage()
		runner = a.store
		memRepo := memory.NewPredictionRepo(a.store)
		repo, prune = memRepo, memRepo
		a.log.Info("Using memory storage")
	}

	// 3. Redis batch guard
	var (
		guard     batch.Guard
		summaries api.SummaryStore
	)
	if cfg.Redis.Enabled() {
		client, err := redis.NewClient(cfg.Redis)
		if err != nil {
			a.log.Warn("Failed to connect to Redis, batch guard disabled", "error", err)
		} else {
			a.redisClient = client
			guard = client
			summaries = client
		}
	}

	// 4. Scorer with resilience
	bc := cfg.Scorer.Breaker
	a.breaker = resilience.NewBreaker(resilience.BreakerConfig{
		ConsecutiveFailures:  bc.ConsecutiveFailures,
		FailureRateThreshold: bc.FailureRateThreshold,
		WindowSize:           bc.WindowSize,
		MinimumCalls:         bc.MinimumCalls,
		OpenTimeout:          bc.OpenTimeout,
		HalfOpenMaxCalls:     bc.HalfOpenMaxCalls,
	}, a.clock)
	a.metrics.SetCircuitState(int(resilience.StateClosed))

	transport := o.transport
	if transport == nil {
		transport = scorer.NewHTTPClient(cfg.Scorer.BaseURL)
	}
	rc := cfg.Scorer.Retry
	client := scorer.NewResilientClient(transport, a.breaker, dir, scorer.Config{
		Timeout: cfg.Scorer.Timeout(),
		Retry: resilience.RetryPolicy{
			MaxAttempts:  rc.MaxAttempts,
			InitialDelay: rc.InitialDelay,
			MaxDelay:     rc.MaxDelay,
		},
	}, a.clock, a.metrics)

	// 5. Domain services
	persister := prediction.NewPersister(runner, a.clock, cfg.Database.PersistTimeout, a.metrics)
	a.orchestrator = prediction.NewOrchestrator(client, dir, persister, a.metrics, a.clock)
	a.pipeline = batch.NewPipeline(a.orchestrator, guard, a.metrics, a.clock)
	a.history = history.NewService(repo)
	a.stats = stats.NewAggregator(repo, dir, cfg.Location(), a.clock)
	if cfg.History.Retention > 0 {
		a.pruner = worker.NewPruner(prune, cfg.History.Retention, a.clock)
	}

	// 6. Servers
	if cfg.Server.GRPCPort > 0 {
		a.grpcHealth = health.NewServer(cfg.Server.GRPCPort)
	}
	a.breaker.OnStateChange(a.onCircuitChange)

	var dbCheck api.HealthCheck
	if a.db != nil {
		dbCheck = a.db.Health
	}
	handler := api.NewHandler(api.Services{
		Predictor: a.orchestrator,
		Batches:   a.pipeline,
		History:   a.history,
		Stats:     a.stats,
		Summaries: summaries,
		Location:  cfg.Location(),
	})
	a.httpServer = api.NewServer(cfg.Server.Port, handler, a.metrics.Registry, a.breaker, dbCheck)

	return a, nil
}

func (a *App) onCircuitChange(from, to resilience.State) {
	a.metrics.SetCircuitState(int(to))
	if a.grpcHealth != nil {
		a.grpcHealth.SetCircuitState(to)
	}
	if to == resilience.StateOpen {
		a.log.Warn("Scorer circuit opened", "from", from.String())
		return
	}
	a.log.Info("Scorer circuit state changed", "from", from.String(), "to", to.String())
}

// Start starts the servers and background collectors.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("HTTP server failed", "error", err)
		}
	}()

	if a.grpcHealth != nil {
		go func() {
			if err := a.grpcHealth.Start(); err != nil {
				a.log.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	if a.db != nil {
		a.db.StartMetricsCollector(ctx, a.metrics, 10*time.Second)
	}
	if a.pruner != nil {
		a.log.Info("Starting history pruner", "retention", a.cfg.History.Retention)
		go a.pruner.Start(ctx)
	}
	return nil
}

// Stop shuts the servers down and releases connections.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping service...")

	err := a.httpServer.Stop(ctx)
	if a.grpcHealth != nil {
		a.grpcHealth.Stop(ctx)
	}
	return errors.Join(err, a.Close())
}

// Close releases storage and Redis connections. Later calls return the first result.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if a.redisClient != nil {
			if err := a.redisClient.Close(); err != nil {
				a.log.Warn("Failed to close Redis", "error", err)
				errs = append(errs, err)
			}
		}
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

// Handler returns the HTTP handler tree.
func (a *App) Handler() http.Handler { return a.httpServer.Handler() }

// Pipeline returns the batch pipeline.
func (a *App) Pipeline() *batch.Pipeline { return a.pipeline }

// Stats returns the stats aggregator.
func (a *App) Stats() *stats.Aggregator { return a.stats }

// Breaker returns the scorer circuit breaker.
func (a *App) Breaker() *resilience.Breaker { return a.breaker }
