// Package stock provides the stock ledger: the authoritative per-(product, store)
// quantity plus its append-only movement log.
package stock

import (
	"time"

	"kassa/internal/core/id"
)

// Movement directions.
const (
	DirectionIn  = "IN"
	DirectionOut = "OUT"
)

// Well-known movement reasons. Reason is a free-form tag; these are the ones
// the platform itself writes.
const (
	ReasonSale       = "sale"
	ReasonAdjustment = "adjustment"
	ReasonRestock    = "restock"
)

// Record is the current quantity of one product in one store.
// Quantity never goes negative and is mutated only through the ledger service.
type Record struct {
	ProductID   id.ID     `db:"product_id" json:"productId"`
	StoreID     id.ID     `db:"store_id" json:"storeId"`
	CompanyID   id.ID     `db:"company_id" json:"companyId"`
	Quantity    int64     `db:"quantity" json:"quantity"`
	MinQuantity int64     `db:"min_quantity" json:"minQuantity"`
	MaxQuantity *int64    `db:"max_quantity" json:"maxQuantity,omitempty"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Movement is an immutable ledger fact. Quantity is always positive; the sign
// lives in Direction. The signed sum of movements for a pair reconciles to the
// record's current quantity.
type Movement struct {
	ID        id.ID     `db:"id" json:"id"`
	CompanyID id.ID     `db:"company_id" json:"companyId"`
	ProductID id.ID     `db:"product_id" json:"productId"`
	StoreID   id.ID     `db:"store_id" json:"storeId"`
	UserID    id.ID     `db:"user_id" json:"userId"`
	Direction string    `db:"direction" json:"direction"`
	Quantity  int64     `db:"quantity" json:"quantity"`
	Reason    string    `db:"reason" json:"reason"`
	SaleID    *id.ID    `db:"sale_id" json:"saleId,omitempty"`
	Notes     string    `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewMovement creates a movement for a signed delta against a record.
func NewMovement(rec *Record, delta int64, userID id.ID, reason string, saleID *id.ID, notes string) *Movement {
	direction := DirectionIn
	quantity := delta
	if delta < 0 {
		direction = DirectionOut
		quantity = -delta
	}

	return &Movement{
		ID:        id.New(),
		CompanyID: rec.CompanyID,
		ProductID: rec.ProductID,
		StoreID:   rec.StoreID,
		UserID:    userID,
		Direction: direction,
		Quantity:  quantity,
		Reason:    reason,
		SaleID:    saleID,
		Notes:     notes,
		CreatedAt: time.Now().UTC(),
	}
}

// Change reports the before/after quantities of a ledger mutation.
type Change struct {
	OldQuantity int64 `json:"oldQuantity"`
	NewQuantity int64 `json:"newQuantity"`
}
