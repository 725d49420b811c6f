// Package stats summarizes prediction history for a day, a date range or a batch.
package stats

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vietddude/flightontime/internal/core/domain"
	"github.com/vietddude/flightontime/internal/infra/storage"
	"github.com/vietddude/flightontime/internal/refdata"
)

const dateLayout = "2006-01-02"

// Aggregator computes snapshots on demand. Nothing is cached.
type Aggregator struct {
	repo  storage.PredictionRepository
	dir   *refdata.Directory
	loc   *time.Location
	clock clockwork.Clock
}

// NewAggregator creates an aggregator. Day boundaries are cut in loc.
func NewAggregator(
	repo storage.PredictionRepository,
	dir *refdata.Directory,
	loc *time.Location,
	clock clockwork.Clock,
) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Aggregator{repo: repo, dir: dir, loc: loc, clock: clock}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, "invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Today returns the current calendar date in the aggregator's zone.
func (a *Aggregator) Today() time.Time {
	return a.clock.Now().In(a.loc)
}

// startOfDay keeps the calendar date of t and pins it to midnight in loc.
func (a *Aggregator) startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, a.loc)
}

// ForDay summarizes predictions created on date.
func (a *Aggregator) ForDay(ctx context.Context, date time.Time) (*domain.StatsSnapshot, error) {
	from := a.startOfDay(date)
	scope := domain.StatsScope{Kind: domain.ScopeDay, Start: from.Format(dateLayout), End: from.Format(dateLayout)}
	return a.between(ctx, scope, from, from.AddDate(0, 0, 1))
}

// ForRange summarizes predictions created from start through end inclusive.
func (a *Aggregator) ForRange(ctx context.Context, start, end time.Time) (*domain.StatsSnapshot, error) {
	from, last := a.startOfDay(start), a.startOfDay(end)
	if from.After(last) {
		return nil, domain.NewValidationError("fin", "start date %s is after end date %s",
			from.Format(dateLayout), last.Format(dateLayout))
	}
	scope := domain.StatsScope{Kind: domain.ScopeRange, Start: from.Format(dateLayout), End: last.Format(dateLayout)}
	return a.between(ctx, scope, from, last.AddDate(0, 0, 1))
}

func (a *Aggregator) between(
	ctx context.Context,
	scope domain.StatsScope,
	from, to time.Time,
) (*domain.StatsSnapshot, error) {
	total, delayed, err := a.repo.CountBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	byAirline, err := a.repo.GroupByAirlineBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	byOrigin, err := a.repo.GroupByOriginBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return a.snapshot(scope, total, delayed, byAirline, byOrigin), nil
}

// ForBatch summarizes every prediction tagged with batchID.
func (a *Aggregator) ForBatch(ctx context.Context, batchID string) (*domain.StatsSnapshot, error) {
	if strings.TrimSpace(batchID) == "" {
		return nil, domain.NewValidationError("batchId", "batch ID is required")
	}
	recs, err := a.repo.FindByBatchID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	var total, delayed int64
	airlines := map[string]*domain.GroupCounts{}
	origins := map[string]*domain.GroupCounts{}
	for _, r := range recs {
		total++
		if r.IsDelayed() {
			delayed++
		}
		fold(airlines, r.Airline, r)
		fold(origins, r.Origin, r)
	}

	scope := domain.StatsScope{Kind: domain.ScopeBatch, BatchID: batchID}
	return a.snapshot(scope, total, delayed, averaged(airlines), averaged(origins)), nil
}

// fold accumulates the probability sum in AverageProbability; averaged divides it.
func fold(groups map[string]*domain.GroupCounts, key string, r *domain.PredictionRecord) {
	g := groups[key]
	if g == nil {
		g = &domain.GroupCounts{Key: key}
		groups[key] = g
	}
	g.Total++
	g.AverageProbability += r.Probability
	if r.IsDelayed() {
		g.Delayed++
	}
}

func averaged(groups map[string]*domain.GroupCounts) []domain.GroupCounts {
	out := make([]domain.GroupCounts, 0, len(groups))
	for _, g := range groups {
		c := *g
		c.AverageProbability /= float64(c.Total)
		out = append(out, c)
	}
	return out
}

func (a *Aggregator) snapshot(
	scope domain.StatsScope,
	total, delayed int64,
	byAirline, byOrigin []domain.GroupCounts,
) *domain.StatsSnapshot {
	s := &domain.StatsSnapshot{
		Scope:        scope,
		TotalCount:   total,
		DelayedCount: delayed,
		OnTimeCount:  total - delayed,
		ByAirline:    make([]domain.GroupStat, 0, len(byAirline)),
		ByOrigin:     make([]domain.GroupStat, 0, len(byOrigin)),
		GeneratedAt:  a.clock.Now().UTC(),
	}
	if total > 0 {
		s.DelayedPercent = ptr(percent(delayed, total))
		s.OnTimePercent = ptr(percent(total-delayed, total))
	}

	for _, g := range byAirline {
		gs := groupStat(g)
		gs.DisplayName = g.Key
		if a.dir != nil {
			if name, ok := a.dir.AirlineName(g.Key); ok {
				gs.DisplayName = name
			}
		}
		s.ByAirline = append(s.ByAirline, gs)
	}
	for _, g := range byOrigin {
		gs := groupStat(g)
		gs.DisplayName = g.Key
		if a.dir != nil {
			if ap, ok := a.dir.AirportInfo(g.Key); ok {
				gs.DisplayName = ap.Name
				gs.City = ap.City
			}
		}
		s.ByOrigin = append(s.ByOrigin, gs)
	}
	sortGroups(s.ByAirline)
	sortGroups(s.ByOrigin)
	return s
}

func groupStat(g domain.GroupCounts) domain.GroupStat {
	return domain.GroupStat{
		Key:                g.Key,
		Total:              g.Total,
		Delayed:            g.Delayed,
		AverageProbability: round(g.AverageProbability, 4),
		DelayedPercent:     percent(g.Delayed, g.Total),
	}
}

// sortGroups orders by total descending, then key ascending.
func sortGroups(gs []domain.GroupStat) {
	slices.SortFunc(gs, func(a, b domain.GroupStat) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
}

func percent(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(n)*100/float64(total), 2)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func ptr(v float64) *float64 {
	return &v
}
