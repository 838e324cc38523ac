package orm

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TransactionOptions configures transaction behavior
type TransactionOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// DefaultTransactionOptions returns sensible defaults
func DefaultTransactionOptions() *TransactionOptions {
	return &TransactionOptions{
		Isolation: sql.LevelDefault,
		ReadOnly:  false,
	}
}

// ToTxOptions converts TransactionOptions to sql.TxOptions
func (o *TransactionOptions) ToTxOptions() *sql.TxOptions {
	if o == nil {
		return nil
	}
	return &sql.TxOptions{
		Isolation: o.Isolation,
		ReadOnly:  o.ReadOnly,
	}
}

// InTransaction reports whether the store is bound to a transaction.
func (s *Store) InTransaction() bool {
	_, ok := s.executor.(*sqlx.Tx)
	return ok
}

// WithTransaction runs fn against a store bound to a new transaction. The
// transaction commits when fn returns nil and rolls back otherwise, including
// on panic. Nested calls reuse the enclosing transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(*Store) error) error {
	return s.WithTransactionOptions(ctx, nil, fn)
}

// WithTransactionOptions executes a function within a database transaction with specific options
func (s *Store) WithTransactionOptions(ctx context.Context, opts *TransactionOptions, fn func(*Store) error) error {
	if s.InTransaction() {
		return fn(s)
	}

	db, ok := s.executor.(DBWrapper)
	if !ok {
		return fmt.Errorf("cannot start transaction: executor is not a database connection")
	}

	tx, err := db.BeginTxx(ctx, opts.ToTxOptions())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(s.withExecutor(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
