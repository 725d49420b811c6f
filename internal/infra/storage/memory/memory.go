package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/vietddude/flightontime/internal/core/domain"
	"github.com/vietddude/flightontime/internal/infra/storage"
)

// MemoryStorage keeps prediction history in process. Used by tests and when no
// database is configured.
type MemoryStorage struct {
	records []*domain.PredictionRecord
	mu      sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Records returns a snapshot of every stored record.
func (s *MemoryStorage) Records() []*domain.PredictionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}

// -----------------------------------------------------------------------------
// Unit of Work
// -----------------------------------------------------------------------------

type unitOfWork struct {
	pending []*domain.PredictionRecord
}

func (u *unitOfWork) SavePrediction(ctx context.Context, rec *domain.PredictionRecord) error {
	cp := *rec
	u.pending = append(u.pending, &cp)
	return nil
}

// WithinUnitOfWork buffers writes and applies them only if fn succeeds.
func (s *MemoryStorage) WithinUnitOfWork(
	ctx context.Context,
	fn func(uow storage.UnitOfWork) error,
) error {
	uow := &unitOfWork{}
	if err := fn(uow); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, uow.pending...)
	return nil
}

// -----------------------------------------------------------------------------
// Prediction Repository
// -----------------------------------------------------------------------------

type PredictionRepo struct {
	store *MemoryStorage
}

func NewPredictionRepo(store *MemoryStorage) *PredictionRepo {
	return &PredictionRepo{store: store}
}

func (r *PredictionRepo) FindByBatchID(ctx context.Context, batchID string) ([]*domain.PredictionRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.PredictionRecord
	for _, rec := range r.store.records {
		if rec.BatchID == batchID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// DeleteOlderThan drops records created before cutoff.
func (r *PredictionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	before := len(r.store.records)
	r.store.records = slices.DeleteFunc(r.store.records, func(rec *domain.PredictionRecord) bool {
		return rec.CreatedAt.Before(cutoff)
	})
	return int64(before - len(r.store.records)), nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func (r *PredictionRepo) CountBetween(ctx context.Context, from, to time.Time) (int64, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var total, delayed int64
	for _, rec := range r.store.records {
		if !inRange(rec.CreatedAt, from, to) {
			continue
		}
		total++
		if rec.IsDelayed() {
			delayed++
		}
	}
	return total, delayed, nil
}

func (r *PredictionRepo) GroupByAirlineBetween(ctx context.Context, from, to time.Time) ([]domain.GroupCounts, error) {
	return r.groupBetween(from, to, func(rec *domain.PredictionRecord) string { return rec.Airline }), nil
}

func (r *PredictionRepo) GroupByOriginBetween(ctx context.Context, from, to time.Time) ([]domain.GroupCounts, error) {
	return r.groupBetween(from, to, func(rec *domain.PredictionRecord) string { return rec.Origin }), nil
}

func (r *PredictionRepo) groupBetween(
	from, to time.Time,
	key func(*domain.PredictionRecord) string,
) []domain.GroupCounts {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	type acc struct {
		total, delayed int64
		probSum        float64
	}
	groups := make(map[string]*acc)
	for _, rec := range r.store.records {
		if !inRange(rec.CreatedAt, from, to) {
			continue
		}
		g := groups[key(rec)]
		if g == nil {
			g = &acc{}
			groups[key(rec)] = g
		}
		g.total++
		g.probSum += rec.Probability
		if rec.IsDelayed() {
			g.delayed++
		}
	}

	out := make([]domain.GroupCounts, 0, len(groups))
	for k, g := range groups {
		out = append(out, domain.GroupCounts{
			Key:                k,
			Total:              g.total,
			Delayed:            g.delayed,
			AverageProbability: g.probSum / float64(g.total),
		})
	}
	return out
}

func matches(rec *domain.PredictionRecord, f storage.Filter) bool {
	switch {
	case !inRange(rec.CreatedAt, f.From, f.To):
		return false
	case f.Airline != "" && rec.Airline != f.Airline:
		return false
	case f.Origin != "" && rec.Origin != f.Origin:
		return false
	case f.Destination != "" && rec.Destination != f.Destination:
		return false
	case f.Class != nil && rec.Class != *f.Class:
		return false
	case f.BatchID != "" && rec.BatchID != f.BatchID:
		return false
	}
	return true
}

func compareBy(field storage.SortField) func(a, b *domain.PredictionRecord) int {
	return func(a, b *domain.PredictionRecord) int {
		var c int
		switch field {
		case storage.SortAirline:
			c = cmp.Compare(a.Airline, b.Airline)
		case storage.SortOrigin:
			c = cmp.Compare(a.Origin, b.Origin)
		case storage.SortDestination:
			c = cmp.Compare(a.Destination, b.Destination)
		case storage.SortProbability:
			c = cmp.Compare(a.Probability, b.Probability)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		return c
	}
}

func (r *PredictionRepo) List(
	ctx context.Context,
	f storage.Filter,
	p storage.Page,
) ([]*domain.PredictionRecord, int64, error) {
	r.store.mu.RLock()
	var hits []*domain.PredictionRecord
	for _, rec := range r.store.records {
		if matches(rec, f) {
			hits = append(hits, rec)
		}
	}
	r.store.mu.RUnlock()

	cmpFn := compareBy(p.Sort)
	slices.SortStableFunc(hits, func(a, b *domain.PredictionRecord) int {
		if p.Desc {
			return cmpFn(b, a)
		}
		return cmpFn(a, b)
	})

	total := int64(len(hits))
	start := p.Offset()
	if start < 0 || start > len(hits) {
		start = len(hits) // overflowed offsets land past the end
	}
	end := min(start+p.Size, len(hits))
	return hits[start:end], total, nil
}

func (r *PredictionRepo) Distinct(ctx context.Context) (storage.DistinctValues, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	airlines := map[string]struct{}{}
	origins := map[string]struct{}{}
	destinations := map[string]struct{}{}
	for _, rec := range r.store.records {
		airlines[rec.Airline] = struct{}{}
		origins[rec.Origin] = struct{}{}
		destinations[rec.Destination] = struct{}{}
	}
	return storage.DistinctValues{
		Airlines:     sortedKeys(airlines),
		Origins:      sortedKeys(origins),
		Destinations: sortedKeys(destinations),
	}, nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
