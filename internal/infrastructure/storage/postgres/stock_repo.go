package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"kassa/internal/core/apperror"
	"kassa/internal/core/id"
	"kassa/internal/domain/stock"
)

const (
	stockRecordsTable   = "stock_records"
	stockMovementsTable = "stock_movements"
)

var stockRecordColumns = []string{
	"product_id", "store_id", "company_id",
	"quantity", "min_quantity", "max_quantity", "updated_at",
}

var stockMovementColumns = []string{
	"id", "company_id", "product_id", "store_id", "user_id",
	"direction", "quantity", "reason", "sale_id", "notes", "created_at",
}

// StockRepo implements stock.Repository.
type StockRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock repository.
func NewStockRepo(txManager *TxManager) *StockRepo {
	return &StockRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Get returns the record for a (product, store) pair.
func (r *StockRepo) Get(ctx context.Context, productID, storeID id.ID) (*stock.Record, error) {
	q := r.builder.Select(stockRecordColumns...).
		From(stockRecordsTable).
		Where(squirrel.Eq{
			"product_id": productID,
			"store_id":   storeID,
		}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rec stock.Record
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock record", fmt.Sprintf("%s@%s", productID, storeID))
		}
		return nil, apperror.NewDatabase(err)
	}

	return &rec, nil
}

// GetForUpdate returns the record with a pessimistic row lock. The lock is
// held until the surrounding transaction ends.
func (r *StockRepo) GetForUpdate(ctx context.Context, productID, storeID id.ID) (*stock.Record, error) {
	sql := `
		SELECT product_id, store_id, company_id,
		       quantity, min_quantity, max_quantity, updated_at
		FROM stock_records
		WHERE product_id = $1 AND store_id = $2
		FOR UPDATE
	`

	var rec stock.Record
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &rec, sql, productID, storeID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock record", fmt.Sprintf("%s@%s", productID, storeID))
		}
		return nil, apperror.NewDatabase(err)
	}

	return &rec, nil
}

// SetQuantity overwrites the record's quantity.
func (r *StockRepo) SetQuantity(ctx context.Context, productID, storeID id.ID, quantity int64) error {
	q := r.builder.Update(stockRecordsTable).
		Set("quantity", quantity).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{
			"product_id": productID,
			"store_id":   storeID,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewDatabase(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("stock record", fmt.Sprintf("%s@%s", productID, storeID))
	}

	return nil
}

// CreateMovement appends one movement to the ledger.
func (r *StockRepo) CreateMovement(ctx context.Context, m *stock.Movement) error {
	q := r.builder.Insert(stockMovementsTable).
		Columns(stockMovementColumns...).
		Values(
			m.ID, m.CompanyID, m.ProductID, m.StoreID, m.UserID,
			m.Direction, m.Quantity, m.Reason, m.SaleID, m.Notes, m.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return apperror.NewDatabase(err)
	}

	return nil
}

// ListByStore returns all records for a store, ordered by product.
func (r *StockRepo) ListByStore(ctx context.Context, storeID id.ID) ([]*stock.Record, error) {
	q := r.builder.Select(stockRecordColumns...).
		From(stockRecordsTable).
		Where(squirrel.Eq{"store_id": storeID}).
		OrderBy("product_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []*stock.Record
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &records, sql, args...); err != nil {
		return nil, apperror.NewDatabase(err)
	}

	return records, nil
}

// ListMovements returns the movement history matching the filter, newest first.
func (r *StockRepo) ListMovements(ctx context.Context, filter stock.MovementFilter) ([]*stock.Movement, error) {
	q := r.builder.Select(stockMovementColumns...).
		From(stockMovementsTable)

	if filter.CompanyID != nil {
		q = q.Where(squirrel.Eq{"company_id": *filter.CompanyID})
	}
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.StoreID != nil {
		q = q.Where(squirrel.Eq{"store_id": *filter.StoreID})
	}
	if filter.SaleID != nil {
		q = q.Where(squirrel.Eq{"sale_id": *filter.SaleID})
	}

	q = q.OrderBy("created_at DESC", "id DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []*stock.Movement
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &movements, sql, args...); err != nil {
		return nil, apperror.NewDatabase(err)
	}

	return movements, nil
}

// Ensure interface compliance.
var _ stock.Repository = (*StockRepo)(nil)
