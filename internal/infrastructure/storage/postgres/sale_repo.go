package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"kassa/internal/core/apperror"
	"kassa/internal/core/id"
	"kassa/internal/domain/sale"
)

const (
	salesTable     = "sales"
	saleItemsTable = "sale_items"
)

var saleColumns = []string{
	"id", "sale_number", "company_id", "store_id", "user_id",
	"subtotal", "tax_amount", "discount", "total",
	"payment_method", "payment_reference",
	"customer_name", "customer_phone", "customer_email", "notes",
	"created_at",
}

var saleItemColumns = []string{
	"id", "sale_id", "product_id", "product_name", "quantity",
	"unit_price", "tax_rate", "subtotal", "tax_amount", "total",
}

// SaleRepo implements sale.Repository.
type SaleRepo struct {
	txManager *TxManager
	inserter  *BatchInserter
	builder   squirrel.StatementBuilderType
}

// NewSaleRepo creates a new sale repository.
func NewSaleRepo(txManager *TxManager) *SaleRepo {
	return &SaleRepo{
		txManager: txManager,
		inserter:  NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts the sale header.
func (r *SaleRepo) Create(ctx context.Context, s *sale.Sale) error {
	q := r.builder.Insert(salesTable).
		Columns(saleColumns...).
		Values(
			s.ID, s.SaleNumber, s.CompanyID, s.StoreID, s.UserID,
			s.Subtotal, s.TaxAmount, s.Discount, s.Total,
			s.PaymentMethod, s.PaymentReference,
			s.CustomerName, s.CustomerPhone, s.CustomerEmail, s.Notes,
			s.CreatedAt,
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

// SaveItems bulk inserts the sale's items via COPY. Requires the sale
// transaction in ctx.
func (r *SaleRepo) SaveItems(ctx context.Context, saleID id.ID, items []sale.Item) error {
	if len(items) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(items))
	for _, item := range items {
		rows = append(rows, []any{
			item.ID, saleID, item.ProductID, item.ProductName, item.Quantity,
			item.UnitPrice, item.TaxRate, item.Subtotal, item.TaxAmount, item.Total,
		})
	}

	if _, err := r.inserter.CopyFromSlice(ctx, saleItemsTable, saleItemColumns, rows); err != nil {
		return fmt.Errorf("copy sale items: %w", err)
	}

	return nil
}

// GetByID returns a sale with its items.
func (r *SaleRepo) GetByID(ctx context.Context, saleID id.ID) (*sale.Sale, error) {
	q := r.builder.Select(saleColumns...).
		From(salesTable).
		Where(squirrel.Eq{"id": saleID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var doc sale.Sale
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("sale", saleID)
		}
		return nil, apperror.NewDatabase(err)
	}

	items, err := r.getItems(ctx, saleID)
	if err != nil {
		return nil, err
	}
	doc.Items = items

	return &doc, nil
}

func (r *SaleRepo) getItems(ctx context.Context, saleID id.ID) ([]sale.Item, error) {
	q := r.builder.Select(saleItemColumns...).
		From(saleItemsTable).
		Where(squirrel.Eq{"sale_id": saleID}).
		OrderBy("id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []sale.Item
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return nil, apperror.NewDatabase(err)
	}

	return items, nil
}

// List returns a page of sales, newest first. Items are not loaded for list
// views.
func (r *SaleRepo) List(ctx context.Context, filter sale.ListFilter) (sale.ListResult, error) {
	result := sale.ListResult{
		Items: make([]*sale.Sale, 0),
		Page:  filter.Page,
		Limit: filter.Limit,
	}

	where := squirrel.And{}
	if filter.CompanyID != nil {
		where = append(where, squirrel.Eq{"company_id": *filter.CompanyID})
	}
	if filter.StoreID != nil {
		where = append(where, squirrel.Eq{"store_id": *filter.StoreID})
	}

	countQuery := r.builder.Select("COUNT(*)").From(salesTable)
	if len(where) > 0 {
		countQuery = countQuery.Where(where)
	}

	countSQL, countArgs, err := countQuery.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, apperror.NewDatabase(err)
	}

	q := r.builder.Select(saleColumns...).
		From(salesTable).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset()))
	if len(where) > 0 {
		q = q.Where(where)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, apperror.NewDatabase(err)
	}

	return result, nil
}

// Ensure interface compliance.
var _ sale.Repository = (*SaleRepo)(nil)
