package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// txBeginner starts transactions. *pgxpool.Pool satisfies it.
type txBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// TxFunc is a unit of work executed inside a transaction.
type TxFunc func(ctx context.Context, tx pgx.Tx) error

// TxManager runs functions inside database transactions, committing on
// success and rolling back on error or panic.
type TxManager struct {
	db     txBeginner
	logger *zap.Logger
}

// NewTxManager creates a transaction manager backed by db.
func NewTxManager(db txBeginner, logger *zap.Logger) *TxManager {
	return &TxManager{
		db:     db,
		logger: logger.Named("tx"),
	}
}

// WithTransaction runs fn inside a read-write transaction.
func (tm *TxManager) WithTransaction(ctx context.Context, fn TxFunc) error {
	return tm.run(ctx, pgx.TxOptions{}, fn)
}

// WithReadOnlyTransaction runs fn inside a read-only transaction.
func (tm *TxManager) WithReadOnlyTransaction(ctx context.Context, fn TxFunc) error {
	return tm.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

func (tm *TxManager) run(ctx context.Context, opts pgx.TxOptions, fn TxFunc) (err error) {
	tx, err := tm.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				tm.logger.Error("rollback after panic failed", zap.Error(rbErr))
			}
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				tm.logger.Error("transaction rollback failed", zap.Error(rbErr))
			}
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
