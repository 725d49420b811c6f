package sqldb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vietddude/flightontime/internal/core/domain"
	"github.com/vietddude/flightontime/internal/infra/storage"
)

const predictionColumns = `id, airline, origin, destination, departure_time, distance_km,
	prediction, label, probability, confidence, batch_id, created_at`

// PredictionRepo implements storage.PredictionRepository.
type PredictionRepo struct {
	db *DB
}

// NewPredictionRepo creates a new prediction repository.
func NewPredictionRepo(db *DB) *PredictionRepo {
	return &PredictionRepo{db: db}
}

// FindByBatchID returns every record of a batch in insertion order.
func (r *PredictionRepo) FindByBatchID(ctx context.Context, batchID string) ([]*domain.PredictionRecord, error) {
	query := r.db.Rebind(`SELECT ` + predictionColumns + ` FROM predictions
		WHERE batch_id = ? ORDER BY created_at, id`)

	var out []*domain.PredictionRecord
	if err := r.db.SelectContext(ctx, &out, query, batchID); err != nil {
		return nil, fmt.Errorf("failed to find batch %s: %w", batchID, err)
	}
	return out, nil
}

// DeleteOlderThan removes records created before cutoff.
func (r *PredictionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM predictions WHERE created_at < ?`), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune predictions: %w", err)
	}
	return res.RowsAffected()
}

// CountBetween counts records created in [from, to).
func (r *PredictionRepo) CountBetween(ctx context.Context, from, to time.Time) (int64, int64, error) {
	query := r.db.Rebind(`
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN prediction = 1 THEN 1 ELSE 0 END), 0) AS delayed
		FROM predictions
		WHERE created_at >= ? AND created_at < ?`)

	var row struct {
		Total   int64 `db:"total"`
		Delayed int64 `db:"delayed"`
	}
	if err := r.db.GetContext(ctx, &row, query, from.UTC(), to.UTC()); err != nil {
		return 0, 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return row.Total, row.Delayed, nil
}

// GroupByAirlineBetween aggregates records created in [from, to) per airline.
func (r *PredictionRepo) GroupByAirlineBetween(ctx context.Context, from, to time.Time) ([]domain.GroupCounts, error) {
	return r.groupBetween(ctx, "airline", from, to)
}

// GroupByOriginBetween aggregates records created in [from, to) per origin.
func (r *PredictionRepo) GroupByOriginBetween(ctx context.Context, from, to time.Time) ([]domain.GroupCounts, error) {
	return r.groupBetween(ctx, "origin", from, to)
}

// groupBetween is only called with fixed column names.
func (r *PredictionRepo) groupBetween(ctx context.Context, column string, from, to time.Time) ([]domain.GroupCounts, error) {
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT %[1]s AS group_key,
		       COUNT(*) AS total,
		       SUM(CASE WHEN prediction = 1 THEN 1 ELSE 0 END) AS delayed,
		       AVG(probability) AS avg_probability
		FROM predictions
		WHERE created_at >= ? AND created_at < ?
		GROUP BY %[1]s`, column))

	var out []domain.GroupCounts
	if err := r.db.SelectContext(ctx, &out, query, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("failed to group predictions by %s: %w", column, err)
	}
	return out, nil
}

func buildWhere(f storage.Filter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, arg any) {
		clauses = append(clauses, clause)
		args = append(args, arg)
	}

	if !f.From.IsZero() {
		add("created_at >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		add("created_at < ?", f.To.UTC())
	}
	if f.Airline != "" {
		add("airline = ?", f.Airline)
	}
	if f.Origin != "" {
		add("origin = ?", f.Origin)
	}
	if f.Destination != "" {
		add("destination = ?", f.Destination)
	}
	if f.Class != nil {
		add("prediction = ?", int(*f.Class))
	}
	if f.BatchID != "" {
		add("batch_id = ?", f.BatchID)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List returns one page of matching records and the total match count.
func (r *PredictionRepo) List(
	ctx context.Context,
	f storage.Filter,
	p storage.Page,
) ([]*domain.PredictionRecord, int64, error) {
	where, args := buildWhere(f)

	var total int64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) FROM predictions"+where), args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count predictions: %w", err)
	}

	if p.Offset() < 0 {
		return []*domain.PredictionRecord{}, total, nil
	}

	sortCol := storage.SortCreatedAt
	if p.Sort.Valid() {
		sortCol = p.Sort
	}
	dir := "ASC"
	if p.Desc {
		dir = "DESC"
	}

	query := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM predictions%s ORDER BY %s %s, id %s LIMIT ? OFFSET ?`,
		predictionColumns, where, sortCol, dir, dir))
	args = append(args, p.Size, p.Offset())

	var out []*domain.PredictionRecord
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list predictions: %w", err)
	}
	return out, total, nil
}

// Distinct returns the airlines, origins and destinations present in history.
func (r *PredictionRepo) Distinct(ctx context.Context) (storage.DistinctValues, error) {
	var out storage.DistinctValues
	targets := []struct {
		column string
		dst    *[]string
	}{
		{"airline", &out.Airlines},
		{"origin", &out.Origins},
		{"destination", &out.Destinations},
	}
	for _, t := range targets {
		query := fmt.Sprintf("SELECT DISTINCT %[1]s FROM predictions ORDER BY %[1]s", t.column)
		if err := r.db.SelectContext(ctx, t.dst, query); err != nil {
			return out, fmt.Errorf("failed to list distinct %s: %w", t.column, err)
		}
		if *t.dst == nil {
			*t.dst = []string{}
		}
	}
	return out, nil
}
