package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchInserter provides bulk insert operations using the COPY protocol.
// Used for sale items and stock movements, which are always written as a set
// inside the sale transaction.
type BatchInserter struct {
	txManager *TxManager
}

// NewBatchInserter creates a new batch inserter.
func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{txManager: txManager}
}

// CopyFromSlice performs bulk insert from a slice of rows.
// Requires an active transaction in the context.
func (b *BatchInserter) CopyFromSlice(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	tx := b.txManager.GetTx(ctx)
	if tx == nil {
		return 0, fmt.Errorf("CopyFromSlice requires transaction context")
	}

	return tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
}
