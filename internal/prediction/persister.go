package prediction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/vietddude/flightontime/internal/core/domain"
	"github.com/vietddude/flightontime/internal/infra/storage"
)

// FailureRecorder counts records that could not be stored.
type FailureRecorder interface {
	RecordPersistenceFailure()
}

// Persister stores prediction records. Failures are logged and counted, never returned.
type Persister struct {
	runner  storage.UnitOfWorkRunner
	clock   clockwork.Clock
	timeout time.Duration
	metrics FailureRecorder
	newID   func() string
	logger  *slog.Logger
}

// NewPersister creates a persister. metrics may be nil.
func NewPersister(
	runner storage.UnitOfWorkRunner,
	clock clockwork.Clock,
	timeout time.Duration,
	metrics FailureRecorder,
) *Persister {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Persister{
		runner:  runner,
		clock:   clock,
		timeout: timeout,
		metrics: metrics,
		newID:   uuid.NewString,
		logger:  slog.Default().With("component", "persister"),
	}
}

// Persist writes one record in its own unit of work. The write outlives caller
// cancellation but is bounded by the persist timeout.
func (p *Persister) Persist(
	ctx context.Context,
	req domain.PredictionRequest,
	out *domain.Outcome,
	batchID string,
) {
	rec := domain.NewPredictionRecord(p.newID(), req, out, batchID, p.clock.Now())

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.write(ctx, rec); err != nil {
		p.logger.Error("Failed to persist prediction",
			"id", rec.ID,
			"airline", rec.Airline,
			"origin", rec.Origin,
			"destination", rec.Destination,
			"batch_id", batchID,
			"error", err,
		)
		if p.metrics != nil {
			p.metrics.RecordPersistenceFailure()
		}
	}
}

func (p *Persister) write(ctx context.Context, rec *domain.PredictionRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", domain.ErrPersistence, r)
		}
	}()

	err = p.runner.WithinUnitOfWork(ctx, func(uow storage.UnitOfWork) error {
		return uow.SavePrediction(ctx, rec)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return nil
}
