package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/flightontime/internal/core/domain"
)

var (
	// ErrTxDone is returned when a unit of work is used after commit or rollback.
	ErrTxDone = errors.New("transaction already completed")
)

// SortField names a sortable history column.
type SortField string

const (
	SortCreatedAt   SortField = "created_at"
	SortAirline     SortField = "airline"
	SortOrigin      SortField = "origin"
	SortDestination SortField = "destination"
	SortProbability SortField = "probability"
)

// Valid reports whether f is a whitelisted sort key.
func (f SortField) Valid() bool {
	switch f {
	case SortCreatedAt, SortAirline, SortOrigin, SortDestination, SortProbability:
		return true
	}
	return false
}

// Filter narrows history queries. Zero fields match everything.
// From and To bound created_at as a half-open interval [From, To).
type Filter struct {
	From        time.Time
	To          time.Time
	Airline     string
	Origin      string
	Destination string
	Class       *domain.PredictionClass
	BatchID     string
}

// Page selects a slice of an ordered result. Number is 0-based.
type Page struct {
	Number int
	Size   int
	Sort   SortField
	Desc   bool
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return p.Number * p.Size
}

// DistinctValues lists the values present in history, each sorted.
type DistinctValues struct {
	Airlines     []string `json:"aerolineas"`
	Origins      []string `json:"origenes"`
	Destinations []string `json:"destinos"`
}

// PredictionRepository handles prediction history reads.
type PredictionRepository interface {
	// FindByBatchID returns every record of a batch in insertion order
	FindByBatchID(ctx context.Context, batchID string) ([]*domain.PredictionRecord, error)

	// CountBetween counts records created in [from, to)
	CountBetween(ctx context.Context, from, to time.Time) (total, delayed int64, err error)

	// GroupByAirlineBetween aggregates records created in [from, to) per airline
	GroupByAirlineBetween(ctx context.Context, from, to time.Time) ([]domain.GroupCounts, error)

	// GroupByOriginBetween aggregates records created in [from, to) per origin airport
	GroupByOriginBetween(ctx context.Context, from, to time.Time) ([]domain.GroupCounts, error)

	// List returns one page of matching records and the total match count
	List(ctx context.Context, filter Filter, page Page) ([]*domain.PredictionRecord, int64, error)

	// Distinct returns the airlines, origins and destinations present in history
	Distinct(ctx context.Context) (DistinctValues, error)
}

// HistoryPruner removes expired history.
type HistoryPruner interface {
	// DeleteOlderThan removes records created before cutoff and returns how many went
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// UnitOfWork bundles writes that must land atomically.
type UnitOfWork interface {
	SavePrediction(ctx context.Context, rec *domain.PredictionRecord) error
}

// UnitOfWorkRunner opens an isolated unit of work per call. It commits when fn
// returns nil and rolls back on error or panic.
type UnitOfWorkRunner interface {
	WithinUnitOfWork(ctx context.Context, fn func(uow UnitOfWork) error) error
}
