// Package prediction validates, scores and records single flight predictions.
package prediction

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vietddude/flightontime/internal/core/domain"
	"github.com/vietddude/flightontime/internal/refdata"
)

// Scorer produces an outcome for a validated request.
type Scorer interface {
	Score(ctx context.Context, req domain.PredictionRequest) (*domain.Outcome, error)
}

// Recorder receives prediction metrics.
type Recorder interface {
	RecordSuccess(req domain.PredictionRequest, out *domain.Outcome, d time.Duration)
	RecordFailure(err error, d time.Duration)
}

// Orchestrator runs one prediction end to end.
type Orchestrator struct {
	scorer    Scorer
	dir       *refdata.Directory
	persister *Persister
	metrics   Recorder
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewOrchestrator creates an orchestrator. persister and metrics may be nil.
func NewOrchestrator(
	scorer Scorer,
	dir *refdata.Directory,
	persister *Persister,
	metrics Recorder,
	clock clockwork.Clock,
) *Orchestrator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Orchestrator{
		scorer:    scorer,
		dir:       dir,
		persister: persister,
		metrics:   metrics,
		clock:     clock,
		logger:    slog.Default().With("component", "orchestrator"),
	}
}

// Predict validates req, scores it and records the result. batchID is empty
// for single predictions. Storage failures never fail the call.
func (o *Orchestrator) Predict(
	ctx context.Context,
	req domain.PredictionRequest,
	batchID string,
) (*domain.Outcome, error) {
	start := o.clock.Now()
	req = Normalize(req)

	if err := Validate(req, o.dir); err != nil {
		o.logger.Debug("Rejected prediction request", "error", err)
		o.recordFailure(err, start)
		return nil, err
	}

	out, err := o.scorer.Score(ctx, req)
	if err != nil {
		o.recordFailure(err, start)
		return nil, err
	}

	if o.metrics != nil {
		o.metrics.RecordSuccess(req, out, o.clock.Since(start))
	}
	if o.persister != nil {
		o.persister.Persist(ctx, req, out.Clone(), batchID)
	}

	o.logger.Info("Prediction completed",
		"airline", req.Airline,
		"origin", req.Origin,
		"destination", req.Destination,
		"label", out.Class.Label(),
		"probability", out.DelayProbability,
		"batch_id", batchID,
	)
	return out, nil
}

func (o *Orchestrator) recordFailure(err error, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordFailure(err, o.clock.Since(start))
	}
}
