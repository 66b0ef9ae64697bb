package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kassa/internal/core/tx"
	"kassa/pkg/logger"
)

var tracer = otel.Tracer("kassa/tx")

// Compile-time check that TxManager implements tx.Manager interface.
var _ tx.Manager = (*TxManager)(nil)

// TxOptions configures transaction behavior.
type TxOptions struct {
	// IsolationLevel: pgx.Serializable, pgx.RepeatableRead, pgx.ReadCommitted
	IsolationLevel pgx.TxIsoLevel

	// AccessMode: pgx.ReadWrite, pgx.ReadOnly
	AccessMode pgx.TxAccessMode

	// StatementTimeout protects against long-running queries (default 30s)
	StatementTimeout time.Duration
}

// DefaultTxOptions returns production-safe defaults.
// ReadCommitted is sufficient for the sale path because the stock row is
// taken with FOR UPDATE inside the transaction.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel:   pgx.ReadCommitted,
		AccessMode:       pgx.ReadWrite,
		StatementTimeout: 30 * time.Second,
	}
}

// TxManager manages database transactions with support for:
// - Nested transaction reuse via context
// - Statement timeout protection
// - Distributed tracing integration
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager creates a new transaction manager.
func NewTxManager(pool *Pool) *TxManager {
	return &TxManager{pool: pool.Pool}
}

// NewTxManagerFromRawPool creates a new transaction manager from raw pgxpool.Pool.
func NewTxManagerFromRawPool(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// txKey is the context key for active transaction.
type txKey struct{}

// Tx wraps pgx.Tx with metadata.
type Tx struct {
	pgx.Tx
}

// RunInTransaction executes fn within a transaction.
// If a transaction already exists in ctx, it will be reused (nested call).
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransactionWithOptions(ctx, DefaultTxOptions(), fn)
}

// RunInTransactionWithOptions executes fn with custom transaction options.
func (m *TxManager) RunInTransactionWithOptions(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "transaction",
		trace.WithAttributes(
			attribute.String("tx.isolation", string(opts.IsolationLevel)),
		))
	defer span.End()

	// Reuse existing transaction
	if existing := m.GetTx(ctx); existing != nil {
		return fn(ctx)
	}

	return m.startNewTransaction(ctx, opts, fn)
}

// startNewTransaction begins a new database transaction.
func (m *TxManager) startNewTransaction(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   opts.IsolationLevel,
		AccessMode: opts.AccessMode,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// Set statement timeout for protection against runaway queries
	if opts.StatementTimeout > 0 {
		_, err = tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", opts.StatementTimeout.Milliseconds()))
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	// Store transaction in context
	txCtx := context.WithValue(ctx, txKey{}, &Tx{Tx: tx})

	if err := m.executeWithRollbackProtection(txCtx, tx, fn); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// executeWithRollbackProtection runs fn and handles rollback on error.
// Context cancellation is handled by pgx internally - no goroutine needed.
func (m *TxManager) executeWithRollbackProtection(ctx context.Context, tx pgx.Tx, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err != nil {
		// Use background context for rollback to ensure it completes
		// even if the original context was cancelled
		if rbErr := tx.Rollback(context.Background()); rbErr != nil {
			logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
		return err
	}
	return nil
}

// GetTx returns the current transaction from context, or nil if none.
func (m *TxManager) GetTx(ctx context.Context) *Tx {
	if tx, ok := ctx.Value(txKey{}).(*Tx); ok {
		return tx
	}
	return nil
}

// Querier abstracts pool and transaction so repos work inside and outside
// transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetQuerier returns the transaction from context if present, otherwise the pool.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if tx := m.GetTx(ctx); tx != nil {
		return tx.Tx
	}
	return m.pool
}

// ReadOnly executes fn in a read-only transaction.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	opts := DefaultTxOptions()
	opts.AccessMode = pgx.ReadOnly
	return m.RunInTransactionWithOptions(ctx, opts, fn)
}
