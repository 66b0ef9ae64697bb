// Package product is the read-side catalog collaborator for the sale and
// stock surfaces. Catalog CRUD lives outside this service.
package product

import (
	"time"

	"kassa/internal/core/id"
	"kassa/internal/core/types"
)

// Product is the catalog view the sale coordinator snapshots prices from.
type Product struct {
	ID           id.ID       `db:"id" json:"id"`
	CompanyID    id.ID       `db:"company_id" json:"companyId"`
	SKU          string      `db:"sku" json:"sku"`
	Name         string      `db:"name" json:"name"`
	Description  string      `db:"description" json:"description,omitempty"`
	SellingPrice types.Money `db:"selling_price" json:"sellingPrice"`
	// TaxRate is a percentage (10 means 10%).
	TaxRate   types.Money `db:"tax_rate" json:"taxRate"`
	Active    bool        `db:"active" json:"active"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time   `db:"updated_at" json:"updatedAt"`
}

// StoreProduct is a product joined with its stock record in one store.
// This is the POS bootstrap view.
type StoreProduct struct {
	Product
	StockQuantity int64 `db:"stock_quantity" json:"stockQuantity"`
	MinQuantity   int64 `db:"min_quantity" json:"minQuantity"`
}
