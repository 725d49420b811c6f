// Package worker holds background maintenance loops.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vietddude/flightontime/internal/infra/storage"
)

// Pruner deletes prediction history older than the retention period.
type Pruner struct {
	repo      storage.HistoryPruner
	retention time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewPruner creates a new Pruner worker. A zero retention disables it.
func NewPruner(repo storage.HistoryPruner, retention time.Duration, clock clockwork.Clock) *Pruner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pruner{
		repo:      repo,
		retention: retention,
		clock:     clock,
		logger:    slog.Default().With("component", "pruner"),
	}
}

// Interval is 10% of the retention period, clamped to [1m, 1h].
func (p *Pruner) Interval() time.Duration {
	interval := min(p.retention/10, time.Hour)
	return max(interval, time.Minute)
}

// Start runs the pruner loop until ctx is done.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return
	}

	ticker := p.clock.NewTicker(p.Interval())
	defer ticker.Stop()

	p.prune(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.prune(ctx)
		}
	}
}

// Prune deletes everything created before now minus the retention period.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	cutoff := p.clock.Now().Add(-p.retention)
	return p.repo.DeleteOlderThan(ctx, cutoff)
}

func (p *Pruner) prune(ctx context.Context) {
	n, err := p.Prune(ctx)
	if err != nil {
		p.logger.Error("Failed to prune prediction history", "error", err)
		return
	}
	if n > 0 {
		p.logger.Info("Pruned prediction history", "deleted", n, "retention", p.retention)
	}
}
