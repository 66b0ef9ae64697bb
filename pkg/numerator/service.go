// Package numerator provides sale number generation backed by a database
// sequence table. Numbers are per-company and strictly sequential: the
// UPSERT + RETURNING runs inside the caller's sale transaction, so a rolled
// back sale leaves a gap in the sequence but never a duplicate.
package numerator

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"kassa/internal/core/id"
	"kassa/internal/infrastructure/storage/postgres"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service generates sale numbers.
type Service struct {
	// staticQuerier is used for testing scenarios.
	staticQuerier Querier
	// txManager yields the transaction-bound querier in production.
	txManager *postgres.TxManager
}

// New creates a numerator service with a static querier. Use in tests.
func New(querier Querier) *Service {
	return &Service{staticQuerier: querier}
}

// NewWithTxManager creates a numerator service that resolves its querier from
// the ambient transaction.
func NewWithTxManager(txManager *postgres.TxManager) *Service {
	return &Service{txManager: txManager}
}

func (s *Service) getQuerier(ctx context.Context) Querier {
	if s.staticQuerier != nil {
		return s.staticQuerier
	}
	return s.txManager.GetQuerier(ctx)
}

// NextSaleNumber returns the next sale number for the company.
// Pattern: SALE-<epoch millis>-<sequence> (e.g., SALE-1756372800000-42).
// The timestamp component makes numbers globally unique even if a sequence
// row is ever reset; the sequence component keeps them ordered per company.
func (s *Service) NextSaleNumber(ctx context.Context, companyID id.ID) (string, error) {
	key := fmt.Sprintf("SALE_%s", companyID)

	var num int64
	err := s.getQuerier(ctx).QueryRow(ctx, `
        INSERT INTO sys_sequences (key, current_val)
        VALUES ($1, 1)
        ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
        RETURNING current_val
	`, key).Scan(&num)
	if err != nil {
		return "", fmt.Errorf("next sale number: %w", err)
	}

	return fmt.Sprintf("SALE-%d-%d", time.Now().UnixMilli(), num), nil
}
