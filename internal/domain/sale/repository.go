package sale

import (
	"context"

	"kassa/internal/core/id"
)

// Repository persists sales. Sales and items are insert-only from the
// perspective of this subsystem.
type Repository interface {
	// Create inserts the sale header. Must run inside a transaction.
	Create(ctx context.Context, s *Sale) error

	// SaveItems inserts the sale's items. Must run inside the same
	// transaction as Create.
	SaveItems(ctx context.Context, saleID id.ID, items []Item) error

	// GetByID returns a sale with its items.
	GetByID(ctx context.Context, saleID id.ID) (*Sale, error)

	// List returns sales matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) (ListResult, error)
}

// ListFilter narrows List. A nil CompanyID means all companies and is only
// reachable for the cross-company observer role.
type ListFilter struct {
	CompanyID *id.ID
	StoreID   *id.ID
	Page      int
	Limit     int
}

// Normalize applies pagination defaults and bounds.
func (f *ListFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
}

// Offset calculates the SQL offset.
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// ListResult is a page of sales.
type ListResult struct {
	Items      []*Sale `json:"items"`
	TotalCount int64   `json:"totalCount"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
}
