// Package sale provides the sale transaction coordinator: cart validation,
// price snapshots, totals, and the atomic sale + stock decrement.
package sale

import (
	"time"

	"kassa/internal/core/id"
	"kassa/internal/core/types"
	"kassa/internal/domain/product"
)

// Sale is a committed point-of-sale transaction. Immutable after creation;
// refund/cancel workflows live downstream.
type Sale struct {
	ID         id.ID  `db:"id" json:"id"`
	SaleNumber string `db:"sale_number" json:"saleNumber"`
	CompanyID  id.ID  `db:"company_id" json:"companyId"`
	StoreID    id.ID  `db:"store_id" json:"storeId"`
	// UserID is the cashier.
	UserID id.ID `db:"user_id" json:"userId"`

	// Totals are derived from the items, never edited independently.
	Subtotal  types.Money `db:"subtotal" json:"subtotal"`
	TaxAmount types.Money `db:"tax_amount" json:"taxAmount"`
	Discount  types.Money `db:"discount" json:"discount"`
	Total     types.Money `db:"total" json:"total"`

	PaymentMethod    string `db:"payment_method" json:"paymentMethod"`
	PaymentReference string `db:"payment_reference" json:"paymentReference,omitempty"`

	CustomerName  string `db:"customer_name" json:"customerName,omitempty"`
	CustomerPhone string `db:"customer_phone" json:"customerPhone,omitempty"`
	CustomerEmail string `db:"customer_email" json:"customerEmail,omitempty"`
	Notes         string `db:"notes" json:"notes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`

	Items []Item `db:"-" json:"items"`
}

// Item is one sale line. Unit price and tax rate are captured at sale time so
// later catalog changes never alter a recorded sale.
type Item struct {
	ID          id.ID  `db:"id" json:"id"`
	SaleID      id.ID  `db:"sale_id" json:"saleId"`
	ProductID   id.ID  `db:"product_id" json:"productId"`
	ProductName string `db:"product_name" json:"productName"`
	Quantity    int64  `db:"quantity" json:"quantity"`

	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`
	TaxRate   types.Money `db:"tax_rate" json:"taxRate"`

	Subtotal  types.Money `db:"subtotal" json:"subtotal"`
	TaxAmount types.Money `db:"tax_amount" json:"taxAmount"`
	Total     types.Money `db:"total" json:"total"`
}

// NewSale creates an empty sale shell.
func NewSale(number string, companyID, storeID, userID id.ID) *Sale {
	return &Sale{
		ID:         id.New(),
		SaleNumber: number,
		CompanyID:  companyID,
		StoreID:    storeID,
		UserID:     userID,
		Subtotal:   types.Zero(),
		TaxAmount:  types.Zero(),
		Discount:   types.Zero(),
		Total:      types.Zero(),
		CreatedAt:  time.Now().UTC(),
		Items:      make([]Item, 0),
	}
}

// AddLine snapshots the product's price and tax rate, computes the line
// amounts and appends the line.
//
//	subtotal = quantity × unitPrice
//	tax      = subtotal × taxRate / 100
//	total    = subtotal + tax
func (s *Sale) AddLine(p *product.Product, quantity int64) {
	lineSubtotal := p.SellingPrice.Mul(types.NewMoneyFromInt(quantity))
	lineTax := types.Percent(lineSubtotal, p.TaxRate)

	item := Item{
		ID:          id.New(),
		SaleID:      s.ID,
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    quantity,
		UnitPrice:   p.SellingPrice,
		TaxRate:     p.TaxRate,
		Subtotal:    lineSubtotal,
		TaxAmount:   lineTax,
		Total:       lineSubtotal.Add(lineTax),
	}

	s.Items = append(s.Items, item)
	s.recalculateTotals()
}

// Finalize applies the discount and fixes the grand total.
// The discount is intentionally not clamped against the total.
func (s *Sale) Finalize(discount types.Money) {
	s.Discount = discount
	s.Total = s.Subtotal.Add(s.TaxAmount).Sub(discount)
}

func (s *Sale) recalculateTotals() {
	s.Subtotal = types.Zero()
	s.TaxAmount = types.Zero()

	for _, item := range s.Items {
		s.Subtotal = s.Subtotal.Add(item.Subtotal)
		s.TaxAmount = s.TaxAmount.Add(item.TaxAmount)
	}

	s.Total = s.Subtotal.Add(s.TaxAmount).Sub(s.Discount)
}
