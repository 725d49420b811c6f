// Package batch scores CSV uploads row by row.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/vietddude/flightontime/internal/core/domain"
)

// Predictor scores a single request.
type Predictor interface {
	Predict(ctx context.Context, req domain.PredictionRequest, batchID string) (*domain.Outcome, error)
}

// lockRefreshInterval is how often a running batch extends its lock.
const lockRefreshInterval = time.Minute

// Guard serializes uploads per batch ID and keeps their summaries. The token
// returned by AcquireBatch identifies this upload's hold on the lock.
type Guard interface {
	AcquireBatch(ctx context.Context, batchID string) (token string, err error)
	RefreshBatch(ctx context.Context, batchID, token string) error
	ReleaseBatch(ctx context.Context, batchID, token string) error
	SaveSummary(ctx context.Context, batchID string, summary domain.BatchSummary) error
}

// Recorder receives batch metrics.
type Recorder interface {
	RecordBatch(processed, failed int, d time.Duration)
}

// Pipeline runs every row of an upload through a Predictor. One bad row never
// stops the rest.
type Pipeline struct {
	predictor Predictor
	guard     Guard
	metrics   Recorder
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewPipeline creates a pipeline. guard and metrics may be nil.
func NewPipeline(predictor Predictor, guard Guard, metrics Recorder, clock clockwork.Clock) *Pipeline {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		predictor: predictor,
		guard:     guard,
		metrics:   metrics,
		clock:     clock,
		logger:    slog.Default().With("component", "batch"),
	}
}

// Ingest parses data and scores each row in file order. An empty batchID gets
// a generated one. A malformed header fails the whole upload with
// domain.ErrMalformedInput before any row runs.
func (p *Pipeline) Ingest(ctx context.Context, data []byte, batchID string) (*domain.BatchResult, error) {
	start := p.clock.Now()
	if batchID == "" {
		batchID = uuid.NewString()
	}

	rd, err := newReader(data)
	if err != nil {
		return nil, err
	}

	var token string
	if p.guard != nil {
		token, err = p.guard.AcquireBatch(ctx, batchID)
		if err != nil {
			if errors.Is(err, domain.ErrBatchInProgress) {
				return nil, err
			}
			p.logger.Warn("Batch lock unavailable, continuing without it", "batch_id", batchID, "error", err)
		} else {
			defer func() {
				if err := p.guard.ReleaseBatch(context.WithoutCancel(ctx), batchID, token); err != nil {
					p.logger.Warn("Failed to release batch lock", "batch_id", batchID, "error", err)
				}
			}()
		}
	}
	lastRefresh := p.clock.Now()

	p.logger.Info("Batch started", "batch_id", batchID)
	result := &domain.BatchResult{BatchID: batchID}

	for {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("batch %s interrupted: %w", batchID, err)
		}

		if token != "" && p.clock.Since(lastRefresh) >= lockRefreshInterval {
			if err := p.guard.RefreshBatch(ctx, batchID, token); err != nil {
				p.logger.Warn("Failed to refresh batch lock", "batch_id", batchID, "error", err)
			}
			lastRefresh = p.clock.Now()
		}

		rec, err := rd.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
		}
		if rec.err != nil {
			result.AddError(rec.line, rec.err.Error())
			continue
		}

		out, err := p.predictor.Predict(ctx, rec.req, batchID)
		if err != nil {
			result.AddError(rec.line, err.Error())
			continue
		}
		result.AddRow(domain.RowResult{
			Line:             rec.line,
			Airline:          rec.req.Airline,
			Origin:           rec.req.Origin,
			Destination:      rec.req.Destination,
			DepartureTime:    rec.req.DepartureTime,
			DistanceKm:       out.DistanceKm,
			Class:            out.Class,
			Label:            out.Class.Label(),
			DelayProbability: out.DelayProbability,
			Confidence:       out.Confidence,
			PredictedAt:      p.clock.Now().UTC(),
			BatchID:          batchID,
		})
	}

	elapsed := p.clock.Since(start)
	if p.metrics != nil {
		p.metrics.RecordBatch(result.Summary.ProcessedCount, result.Summary.ErrorCount, elapsed)
	}
	if p.guard != nil {
		if err := p.guard.SaveSummary(context.WithoutCancel(ctx), batchID, result.Summary); err != nil {
			p.logger.Warn("Failed to cache batch summary", "batch_id", batchID, "error", err)
		}
	}

	p.logger.Info("Batch finished",
		"batch_id", batchID,
		"processed", result.Summary.ProcessedCount,
		"errors", result.Summary.ErrorCount,
		"duration", elapsed,
	)
	return result, nil
}
