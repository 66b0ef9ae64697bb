package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"kassa/internal/core/apperror"
	"kassa/internal/core/id"
	"kassa/internal/domain/product"
)

const productsTable = "products"

var productColumns = []string{
	"id", "company_id", "sku", "name", "description",
	"selling_price", "tax_rate", "active", "created_at", "updated_at",
}

// ProductRepo implements product.Repository.
type ProductRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

// NewProductRepo creates a new product repository.
func NewProductRepo(txManager *TxManager) *ProductRepo {
	return &ProductRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID returns one product.
func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	q := r.builder.Select(productColumns...).
		From(productsTable).
		Where(squirrel.Eq{"id": productID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p product.Product
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", productID)
		}
		return nil, apperror.NewDatabase(err)
	}

	return &p, nil
}

// ListByStore returns the company's active products joined with their stock
// records in the store. Products with no record in the store appear with zero
// quantity.
func (r *ProductRepo) ListByStore(ctx context.Context, companyID, storeID id.ID) ([]*product.StoreProduct, error) {
	sql := `
		SELECT p.id, p.company_id, p.sku, p.name, p.description,
		       p.selling_price, p.tax_rate, p.active, p.created_at, p.updated_at,
		       COALESCE(sr.quantity, 0)     AS stock_quantity,
		       COALESCE(sr.min_quantity, 0) AS min_quantity
		FROM products p
		LEFT JOIN stock_records sr
		       ON sr.product_id = p.id AND sr.store_id = $2
		WHERE p.company_id = $1 AND p.active
		ORDER BY p.name
	`

	var listing []*product.StoreProduct
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &listing, sql, companyID, storeID); err != nil {
		return nil, apperror.NewDatabase(err)
	}

	return listing, nil
}

// Ensure interface compliance.
var _ product.Repository = (*ProductRepo)(nil)
