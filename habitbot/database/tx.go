package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// TransactionOptions configures transaction behavior
type TransactionOptions struct {
	IsolationLevel sql.IsolationLevel
	Timeout        time.Duration
}

// TransactionManager runs units of work that must commit or roll back as a whole.
type TransactionManager struct {
	db *bun.DB
}

func NewTransactionManager(db *bun.DB) *TransactionManager {
	return &TransactionManager{db: db}
}

// StandardTransactionOptions returns default transaction options
func StandardTransactionOptions(timeout time.Duration) *TransactionOptions {
	return &TransactionOptions{
		IsolationLevel: sql.LevelReadCommitted,
		Timeout:        timeout,
	}
}

// WithTransaction executes fn within a transaction bounded by opts.Timeout.
// Any error from fn, or an expired deadline, rolls everything back.
func (tm *TransactionManager) WithTransaction(ctx context.Context, opts *TransactionOptions, fn func(context.Context, bun.Tx) error) error {
	if opts == nil {
		opts = StandardTransactionOptions(30 * time.Second)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var txOpts *sql.TxOptions
	// SQLite has a single isolation level and rejects explicit ones.
	if tm.db.Dialect().Name() == dialect.PG {
		txOpts = &sql.TxOptions{Isolation: opts.IsolationLevel}
	}

	tx, err := tm.db.BeginTx(timeoutCtx, txOpts)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	finished := false
	defer func() {
		if !finished {
			_ = tx.Rollback()
		}
	}()

	if err := fn(timeoutCtx, tx); err != nil {
		return err
	}

	finished = true
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
