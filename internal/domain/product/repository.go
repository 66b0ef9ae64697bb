package product

import (
	"context"

	"kassa/internal/core/id"
)

// Repository reads the product catalog.
type Repository interface {
	// GetByID returns one product. Returns apperror NOT_FOUND when missing.
	GetByID(ctx context.Context, productID id.ID) (*Product, error)

	// ListByStore returns active products of a company joined with their
	// stock records in the given store.
	ListByStore(ctx context.Context, companyID, storeID id.ID) ([]*StoreProduct, error)
}
