package stock

import (
	"context"

	"kassa/internal/core/id"
)

// Repository persists stock records and movements.
// Implementations must participate in the transaction carried by ctx.
type Repository interface {
	// Get returns the record for a (product, store) pair.
	// Returns apperror NOT_FOUND when no record exists.
	Get(ctx context.Context, productID, storeID id.ID) (*Record, error)

	// GetForUpdate is Get with a pessimistic row lock. Must be called inside
	// a transaction; the lock is what prevents two concurrent sales from both
	// passing the availability check.
	GetForUpdate(ctx context.Context, productID, storeID id.ID) (*Record, error)

	// SetQuantity overwrites the record's quantity.
	SetQuantity(ctx context.Context, productID, storeID id.ID, quantity int64) error

	// CreateMovement appends one movement to the ledger.
	CreateMovement(ctx context.Context, m *Movement) error

	// ListByStore returns all records for a store.
	ListByStore(ctx context.Context, storeID id.ID) ([]*Record, error)

	// ListMovements returns the movement history matching the filter,
	// newest first.
	ListMovements(ctx context.Context, filter MovementFilter) ([]*Movement, error)
}

// MovementFilter narrows ListMovements.
type MovementFilter struct {
	CompanyID *id.ID
	ProductID *id.ID
	StoreID   *id.ID
	SaleID    *id.ID
	Limit     int
	Offset    int
}
