package stats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/flightontime/internal/core/domain"
	"github.com/vietddude/flightontime/internal/infra/storage"
	"github.com/vietddude/flightontime/internal/infra/storage/memory"
	"github.com/vietddude/flightontime/internal/refdata"
)

var day = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *memory.MemoryStorage, recs ...*domain.PredictionRecord) {
	t.Helper()
	err := store.WithinUnitOfWork(context.Background(), func(uow storage.UnitOfWork) error {
		for _, r := range recs {
			if err := uow.SavePrediction(context.Background(), r); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func rec(id, airline, origin string, class domain.PredictionClass, prob float64, at time.Time, batch string) *domain.PredictionRecord {
	return &domain.PredictionRecord{
		ID: id, Airline: airline, Origin: origin, Destination: "JFK",
		Class: class, Label: class.Label(), Probability: prob, BatchID: batch, CreatedAt: at,
	}
}

func newAggregator(store *memory.MemoryStorage, loc *time.Location) *Aggregator {
	return NewAggregator(memory.NewPredictionRepo(store), refdata.MustDefault(), loc,
		clockwork.NewFakeClockAt(day.Add(12*time.Hour)))
}

func TestForDay_Empty(t *testing.T) {
	a := newAggregator(memory.NewMemoryStorage(), time.UTC)

	s, err := a.ForDay(context.Background(), day)
	require.NoError(t, err)
	assert.Zero(t, s.TotalCount)
	assert.Nil(t, s.DelayedPercent)
	assert.Nil(t, s.OnTimePercent)
	assert.Empty(t, s.ByAirline)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "porcentaje_retrasados")
	assert.Nil(t, raw["porcentaje_retrasados"], "percentages render as null when empty")
	assert.Equal(t, []any{}, raw["estadisticas_por_aerolinea"])
}

func TestForDay(t *testing.T) {
	store := memory.NewMemoryStorage()
	seed(t, store,
		rec("1", "DL", "ATL", domain.ClassDelayed, 0.8, day.Add(1*time.Hour), ""),
		rec("2", "DL", "ATL", domain.ClassOnTime, 0.3, day.Add(2*time.Hour), ""),
		rec("3", "AA", "ORD", domain.ClassDelayed, 0.61234, day.Add(3*time.Hour), ""),
		rec("4", "UA", "ZZZ", domain.ClassOnTime, 0.1, day.Add(4*time.Hour), ""),
		rec("5", "UA", "SFO", domain.ClassOnTime, 0.1, day.Add(-time.Minute), ""),
	)
	a := newAggregator(store, time.UTC)

	s, err := a.ForDay(context.Background(), day)
	require.NoError(t, err)

	assert.Equal(t, domain.StatsScope{Kind: domain.ScopeDay, Start: "2025-01-15", End: "2025-01-15"}, s.Scope)
	assert.Equal(t, int64(4), s.TotalCount)
	assert.Equal(t, int64(2), s.DelayedCount)
	assert.Equal(t, int64(2), s.OnTimeCount)
	require.NotNil(t, s.DelayedPercent)
	assert.Equal(t, 50.0, *s.DelayedPercent)
	assert.Equal(t, 50.0, *s.OnTimePercent)

	wantAirlines := []domain.GroupStat{
		{Key: "DL", DisplayName: "Delta Air Lines Inc. (DL)", Total: 2, Delayed: 1, AverageProbability: 0.55, DelayedPercent: 50},
		{Key: "AA", DisplayName: "American Airlines Inc. (AA)", Total: 1, Delayed: 1, AverageProbability: 0.6123, DelayedPercent: 100},
		{Key: "UA", DisplayName: "United Air Lines Inc. (UA)", Total: 1, Delayed: 0, AverageProbability: 0.1, DelayedPercent: 0},
	}
	if diff := cmp.Diff(wantAirlines, s.ByAirline, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("ByAirline mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, s.ByOrigin, 3)
	assert.Equal(t, "ATL", s.ByOrigin[0].Key)
	assert.Equal(t, "Atlanta, GA", s.ByOrigin[0].City)
	assert.Equal(t, "ZZZ", s.ByOrigin[2].DisplayName, "unknown airport falls back to its code")
}

func TestForDay_TimeZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	store := memory.NewMemoryStorage()
	// 2025-01-15 02:00 UTC is still Jan 14 in New York
	seed(t, store, rec("1", "DL", "ATL", domain.ClassOnTime, 0.2, day.Add(2*time.Hour), ""))
	a := newAggregator(store, ny)

	s, err := a.ForDay(context.Background(), day)
	require.NoError(t, err)
	assert.Zero(t, s.TotalCount)

	s, err = a.ForDay(context.Background(), day.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.TotalCount)
}

func TestForRange(t *testing.T) {
	store := memory.NewMemoryStorage()
	seed(t, store,
		rec("1", "DL", "ATL", domain.ClassDelayed, 0.9, day, ""),
		rec("2", "DL", "ATL", domain.ClassOnTime, 0.2, day.AddDate(0, 0, 2).Add(23*time.Hour), ""),
		rec("3", "DL", "ATL", domain.ClassOnTime, 0.2, day.AddDate(0, 0, 3), ""),
	)
	a := newAggregator(store, time.UTC)

	s, err := a.ForRange(context.Background(), day, day.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.TotalCount)
	assert.Equal(t, "2025-01-17", s.Scope.End)

	_, err = a.ForRange(context.Background(), day.AddDate(0, 0, 1), day)
	var ve *domain.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestForBatch(t *testing.T) {
	store := memory.NewMemoryStorage()
	seed(t, store,
		rec("1", "DL", "ATL", domain.ClassDelayed, 0.7, day, "b1"),
		rec("2", "AA", "ORD", domain.ClassOnTime, 0.2, day, "b1"),
		rec("3", "AA", "ORD", domain.ClassOnTime, 0.4, day, "b1"),
		rec("4", "AA", "ORD", domain.ClassDelayed, 0.9, day, "other"),
	)
	a := newAggregator(store, time.UTC)

	s, err := a.ForBatch(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.TotalCount)
	assert.Equal(t, 33.33, *s.DelayedPercent)
	assert.Equal(t, 66.67, *s.OnTimePercent)
	assert.Equal(t, "b1", s.Scope.BatchID)

	require.Len(t, s.ByAirline, 2)
	assert.Equal(t, "AA", s.ByAirline[0].Key)
	assert.InDelta(t, 0.3, s.ByAirline[0].AverageProbability, 1e-9)

	_, err = a.ForBatch(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("inicio", "2025-01-15")
	require.NoError(t, err)
	assert.True(t, d.Equal(day))

	_, err = ParseDate("inicio", "15/01/2025")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
