package history

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/flightontime/internal/core/domain"
	"github.com/vietddude/flightontime/internal/infra/storage"
	"github.com/vietddude/flightontime/internal/infra/storage/memory"
)

func newService(t *testing.T, n int) *Service {
	t.Helper()
	store := memory.NewMemoryStorage()
	base := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	airlines := []string{"DL", "AA", "UA"}

	err := store.WithinUnitOfWork(context.Background(), func(uow storage.UnitOfWork) error {
		for i := 0; i < n; i++ {
			rec := &domain.PredictionRecord{
				ID:          fmt.Sprintf("r%03d", i),
				Airline:     airlines[i%3],
				Origin:      "ATL",
				Destination: "JFK",
				Class:       domain.PredictionClass(i % 2),
				Probability: float64(i) / float64(n),
				CreatedAt:   base.Add(time.Duration(i) * time.Minute),
			}
			if err := uow.SavePrediction(context.Background(), rec); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return NewService(memory.NewPredictionRepo(store))
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name    string
		in      storage.Page
		want    storage.Page
		wantErr bool
	}{
		{"defaults", storage.Page{}, storage.Page{Size: 20, Sort: storage.SortCreatedAt, Desc: true}, false},
		{"capped", storage.Page{Size: 500, Sort: storage.SortAirline}, storage.Page{Size: 100, Sort: storage.SortAirline}, false},
		{"negative page", storage.Page{Number: -1}, storage.Page{}, true},
		{"bad sort", storage.Page{Sort: "id; DROP TABLE predictions"}, storage.Page{}, true},
		{"page overflows offset", storage.Page{Number: math.MaxInt64 / 10, Size: 20}, storage.Page{}, true},
		{"last addressable page", storage.Page{Number: math.MaxInt / 100, Size: 100, Sort: storage.SortAirline},
			storage.Page{Number: math.MaxInt / 100, Size: 100, Sort: storage.SortAirline}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePage(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestList_PageOutOfRange(t *testing.T) {
	svc := newService(t, 3)

	_, err := svc.List(context.Background(), storage.Filter{}, storage.Page{Number: math.MaxInt64 / 10, Size: 20})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "page", verr.Field)
}

func TestList(t *testing.T) {
	svc := newService(t, 45)

	page, err := svc.List(context.Background(), storage.Filter{}, storage.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(45), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 20)
	assert.Equal(t, "r044", page.Items[0].ID, "newest first by default")
	assert.True(t, page.HasNext)
	assert.False(t, page.HasPrevious)

	last, err := svc.List(context.Background(), storage.Filter{}, storage.Page{Number: 2})
	require.NoError(t, err)
	assert.Len(t, last.Items, 5)
	assert.False(t, last.HasNext)
	assert.True(t, last.HasPrevious)

	dl, err := svc.List(context.Background(), storage.Filter{Airline: " dl "}, storage.Page{Size: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(15), dl.Total)

	delayed := domain.ClassDelayed
	d, err := svc.List(context.Background(), storage.Filter{Class: &delayed}, storage.Page{Size: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(22), d.Total)
}

func TestList_Empty(t *testing.T) {
	svc := newService(t, 0)
	page, err := svc.List(context.Background(), storage.Filter{}, storage.Page{})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Zero(t, page.TotalPages)
}

func TestList_InvertedRange(t *testing.T) {
	svc := newService(t, 1)
	now := time.Now()
	_, err := svc.List(context.Background(), storage.Filter{From: now, To: now.Add(-time.Hour)}, storage.Page{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestFilters(t *testing.T) {
	svc := newService(t, 6)
	f, err := svc.Filters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AA", "DL", "UA"}, f.Airlines)
	assert.Equal(t, []string{"ATL"}, f.Origins)
	assert.Equal(t, []string{"JFK"}, f.Destinations)
}
