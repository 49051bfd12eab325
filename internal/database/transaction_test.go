package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// fakeTx embeds pgx.Tx so only the methods TxManager touches need bodies.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (f *fakeTx) Commit(ctx context.Context) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	if f.committed {
		return pgx.ErrTxClosed
	}
	f.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx       *fakeTx
	beginErr error
	lastOpts pgx.TxOptions
}

func (f *fakeBeginner) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	f.lastOpts = opts
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.tx, nil
}

func TestTxManager_WithTransaction_Commits(t *testing.T) {
	tx := &fakeTx{}
	tm := NewTxManager(&fakeBeginner{tx: tx}, zap.NewNop())

	var ran bool
	err := tm.WithTransaction(context.Background(), func(ctx context.Context, got pgx.Tx) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithTransaction() error = %v", err)
	}
	if !ran {
		t.Error("transaction function did not run")
	}
	if !tx.committed {
		t.Error("transaction should be committed on success")
	}
	if tx.rolledBack {
		t.Error("transaction should not be rolled back on success")
	}
}

func TestTxManager_WithTransaction_RollsBackOnError(t *testing.T) {
	tx := &fakeTx{}
	tm := NewTxManager(&fakeBeginner{tx: tx}, zap.NewNop())

	wantErr := errors.New("seed failed")
	err := tm.WithTransaction(context.Background(), func(ctx context.Context, got pgx.Tx) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("WithTransaction() error = %v, want %v", err, wantErr)
	}
	if tx.committed {
		t.Error("transaction should not be committed on error")
	}
	if !tx.rolledBack {
		t.Error("transaction should be rolled back on error")
	}
}

func TestTxManager_WithTransaction_BeginError(t *testing.T) {
	beginErr := errors.New("pool exhausted")
	tm := NewTxManager(&fakeBeginner{beginErr: beginErr}, zap.NewNop())

	err := tm.WithTransaction(context.Background(), func(ctx context.Context, tx pgx.Tx) error {
		t.Fatal("function should not run when begin fails")
		return nil
	})
	if !errors.Is(err, beginErr) {
		t.Errorf("WithTransaction() error = %v, want %v", err, beginErr)
	}
}

func TestTxManager_WithTransaction_CommitError(t *testing.T) {
	commitErr := errors.New("connection lost")
	tx := &fakeTx{commitErr: commitErr}
	tm := NewTxManager(&fakeBeginner{tx: tx}, zap.NewNop())

	err := tm.WithTransaction(context.Background(), func(ctx context.Context, got pgx.Tx) error {
		return nil
	})
	if !errors.Is(err, commitErr) {
		t.Fatalf("WithTransaction() error = %v, want %v", err, commitErr)
	}
	if !tx.rolledBack {
		t.Error("failed commit should roll the transaction back")
	}
}

func TestTxManager_WithTransaction_RollsBackOnPanic(t *testing.T) {
	tx := &fakeTx{}
	tm := NewTxManager(&fakeBeginner{tx: tx}, zap.NewNop())

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic should propagate out of WithTransaction")
			}
		}()
		_ = tm.WithTransaction(context.Background(), func(ctx context.Context, got pgx.Tx) error {
			panic("boom")
		})
	}()

	if tx.committed {
		t.Error("transaction should not be committed after panic")
	}
	if !tx.rolledBack {
		t.Error("transaction should be rolled back after panic")
	}
}

func TestTxManager_WithReadOnlyTransaction(t *testing.T) {
	tx := &fakeTx{}
	beginner := &fakeBeginner{tx: tx}
	tm := NewTxManager(beginner, zap.NewNop())

	err := tm.WithReadOnlyTransaction(context.Background(), func(ctx context.Context, got pgx.Tx) error {
		return nil
	})
	if err != nil {
		t.Fatalf("WithReadOnlyTransaction() error = %v", err)
	}
	if beginner.lastOpts.AccessMode != pgx.ReadOnly {
		t.Errorf("access mode = %v, want read only", beginner.lastOpts.AccessMode)
	}
}
