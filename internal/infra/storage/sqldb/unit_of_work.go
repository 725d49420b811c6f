package sqldb

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vietddude/flightontime/internal/core/domain"
	"github.com/vietddude/flightontime/internal/infra/storage"
)

// UnitOfWork bundles persistence operations into a single database transaction,
// ensuring atomicity (all succeed or all fail).
type UnitOfWork struct {
	db *DB
	tx *sqlx.Tx
}

// NewUnitOfWork creates a new unit of work with an active transaction.
func (db *DB) NewUnitOfWork(ctx context.Context) (*UnitOfWork, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &UnitOfWork{db: db, tx: tx}, nil
}

// Commit commits the transaction.
func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return storage.ErrTxDone
	}
	err := u.tx.Commit()
	u.tx = nil
	return err
}

// Rollback rolls back the transaction. Safe to call multiple times.
func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Already committed or rolled back
	}
	err := u.tx.Rollback()
	u.tx = nil
	return err
}

const insertPrediction = `
	INSERT INTO predictions (
		id, airline, origin, destination, departure_time, distance_km,
		prediction, label, probability, confidence, batch_id, created_at
	) VALUES (
		:id, :airline, :origin, :destination, :departure_time, :distance_km,
		:prediction, :label, :probability, :confidence, :batch_id, :created_at
	)`

// SavePrediction inserts one record in the transaction.
func (u *UnitOfWork) SavePrediction(ctx context.Context, rec *domain.PredictionRecord) error {
	if u.tx == nil {
		return storage.ErrTxDone
	}
	if _, err := u.tx.NamedExecContext(ctx, insertPrediction, rec); err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	return nil
}

// WithinUnitOfWork runs fn in a fresh transaction. It commits on success and
// rolls back on error or panic.
func (db *DB) WithinUnitOfWork(ctx context.Context, fn func(uow storage.UnitOfWork) error) (err error) {
	uow, err := db.NewUnitOfWork(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = uow.Rollback()
			panic(p)
		}
	}()

	if err := fn(uow); err != nil {
		_ = uow.Rollback()
		return err
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
