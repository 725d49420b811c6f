package sqldb

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/flightontime/internal/core/domain"
	"github.com/vietddude/flightontime/internal/infra/storage"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{Driver: "sqlite3", URL: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))
	return db
}

var day = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

func record(id, airline, origin string, class domain.PredictionClass, prob float64, at time.Time, batch string) *domain.PredictionRecord {
	return &domain.PredictionRecord{
		ID: id, Airline: airline, Origin: origin, Destination: "JFK",
		DistanceKm: 1222.08, Class: class, Label: class.Label(),
		Probability: prob, Confidence: 0.9, BatchID: batch, CreatedAt: at,
	}
}

func save(t *testing.T, db *DB, recs ...*domain.PredictionRecord) {
	t.Helper()
	err := db.WithinUnitOfWork(context.Background(), func(uow storage.UnitOfWork) error {
		for _, r := range recs {
			if err := uow.SavePrediction(context.Background(), r); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestWithinUnitOfWork(t *testing.T) {
	db := openTestDB(t)
	repo := NewPredictionRepo(db)
	ctx := context.Background()

	save(t, db, record("a", "DL", "ATL", domain.ClassDelayed, 0.8, day.Add(time.Hour), "b1"))

	errFail := errors.New("fail")
	err := db.WithinUnitOfWork(ctx, func(uow storage.UnitOfWork) error {
		require.NoError(t, uow.SavePrediction(ctx, record("b", "DL", "ATL", 0, 0.1, day, "b1")))
		return errFail
	})
	assert.ErrorIs(t, err, errFail)

	assert.Panics(t, func() {
		_ = db.WithinUnitOfWork(ctx, func(uow storage.UnitOfWork) error {
			_ = uow.SavePrediction(ctx, record("c", "DL", "ATL", 0, 0.1, day, "b1"))
			panic("boom")
		})
	})

	recs, err := repo.FindByBatchID(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].ID)
	assert.Equal(t, "Delayed", recs[0].Label)
	assert.Equal(t, domain.ClassDelayed, recs[0].Class)
	assert.True(t, recs[0].CreatedAt.Equal(day.Add(time.Hour)))
}

func TestUnitOfWork_DuplicateIDRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	save(t, db, record("dup", "DL", "ATL", 0, 0.1, day, ""))

	err := db.WithinUnitOfWork(ctx, func(uow storage.UnitOfWork) error {
		return uow.SavePrediction(ctx, record("dup", "DL", "ATL", 0, 0.1, day, ""))
	})
	assert.Error(t, err)

	uow, err := db.NewUnitOfWork(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Rollback())
	assert.NoError(t, uow.Rollback(), "rollback is idempotent")
	assert.ErrorIs(t, uow.Commit(), storage.ErrTxDone)
}

func TestPredictionRepo_Aggregates(t *testing.T) {
	db := openTestDB(t)
	repo := NewPredictionRepo(db)
	ctx := context.Background()

	save(t, db,
		record("1", "DL", "ATL", domain.ClassDelayed, 0.8, day.Add(time.Hour), ""),
		record("2", "DL", "ATL", domain.ClassOnTime, 0.2, day.Add(2*time.Hour), ""),
		record("3", "AA", "ORD", domain.ClassDelayed, 0.6, day.Add(3*time.Hour), ""),
		record("4", "AA", "ORD", domain.ClassDelayed, 0.9, day.Add(24*time.Hour), ""), // next day
		record("5", "AA", "ORD", domain.ClassDelayed, 0.9, day.Add(-time.Second), ""), // previous day
	)
	next := day.Add(24 * time.Hour)

	total, delayed, err := repo.CountBetween(ctx, day, next)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, int64(2), delayed)

	groups, err := repo.GroupByAirlineBetween(ctx, day, next)
	require.NoError(t, err)
	byKey := map[string]domain.GroupCounts{}
	for _, g := range groups {
		byKey[g.Key] = g
	}
	require.Len(t, byKey, 2)
	assert.Equal(t, int64(2), byKey["DL"].Total)
	assert.Equal(t, int64(1), byKey["DL"].Delayed)
	assert.InDelta(t, 0.5, byKey["DL"].AverageProbability, 1e-9)

	origins, err := repo.GroupByOriginBetween(ctx, day, next)
	require.NoError(t, err)
	assert.Len(t, origins, 2)

	total, _, err = repo.CountBetween(ctx, day.Add(48*time.Hour), day.Add(72*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestPredictionRepo_ListAndDistinct(t *testing.T) {
	db := openTestDB(t)
	repo := NewPredictionRepo(db)
	ctx := context.Background()

	save(t, db,
		record("a", "DL", "ATL", domain.ClassOnTime, 0.1, day.Add(1*time.Minute), "b1"),
		record("b", "AA", "ORD", domain.ClassDelayed, 0.7, day.Add(2*time.Minute), "b1"),
		record("c", "UA", "SFO", domain.ClassDelayed, 0.9, day.Add(3*time.Minute), ""),
	)

	page, total, err := repo.List(ctx, storage.Filter{}, storage.Page{Size: 2, Sort: storage.SortCreatedAt, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ID)
	assert.Equal(t, "b", page[1].ID)

	delayed := domain.ClassDelayed
	page, total, err = repo.List(ctx, storage.Filter{Class: &delayed, BatchID: "b1"}, storage.Page{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)

	page, _, err = repo.List(ctx, storage.Filter{}, storage.Page{Size: 10, Sort: storage.SortProbability})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, []string{page[0].ID, page[1].ID, page[2].ID})

	page, total, err = repo.List(ctx, storage.Filter{From: day.Add(2 * time.Minute)}, storage.Page{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	page, total, err = repo.List(ctx, storage.Filter{}, storage.Page{Number: math.MaxInt64 / 10, Size: 20})
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Equal(t, int64(3), total)

	distinct, err := repo.Distinct(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AA", "DL", "UA"}, distinct.Airlines)
	assert.Equal(t, []string{"ATL", "ORD", "SFO"}, distinct.Origins)
	assert.Equal(t, []string{"JFK"}, distinct.Destinations)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "nope", URL: "x"})
	assert.Error(t, err)
}

func TestPredictionRepo_DeleteOlderThan(t *testing.T) {
	db := openTestDB(t)
	save(t, db,
		record("old", "DL", "ATL", domain.ClassOnTime, 0.1, day.Add(-48*time.Hour), ""),
		record("new", "DL", "ATL", domain.ClassOnTime, 0.1, day.Add(time.Hour), ""),
	)
	repo := NewPredictionRepo(db)

	n, err := repo.DeleteOlderThan(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	total, _, err := repo.CountBetween(context.Background(), day.Add(-72*time.Hour), day.Add(72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}
