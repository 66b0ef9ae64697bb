package dto

import (
	"kassa/internal/core/apperror"
	"kassa/internal/core/id"
	"kassa/internal/core/types"
	"kassa/internal/domain/sale"
)

// SaleItemRequest is one cart line of a sale request.
type SaleItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required"`
}

// CreateSaleRequest is the checkout payload from the POS.
type CreateSaleRequest struct {
	Items            []SaleItemRequest `json:"items" binding:"required"`
	PaymentMethod    string            `json:"paymentMethod" binding:"required"`
	PaymentReference string            `json:"paymentReference"`
	CustomerName     string            `json:"customerName"`
	CustomerPhone    string            `json:"customerPhone"`
	CustomerEmail    string            `json:"customerEmail"`
	Notes            string            `json:"notes"`
	Discount         types.Money       `json:"discount"`
}

// ToInput converts the request to the coordinator's input.
func (r CreateSaleRequest) ToInput() (sale.CreateInput, error) {
	in := sale.CreateInput{
		PaymentMethod:    r.PaymentMethod,
		PaymentReference: r.PaymentReference,
		CustomerName:     r.CustomerName,
		CustomerPhone:    r.CustomerPhone,
		CustomerEmail:    r.CustomerEmail,
		Notes:            r.Notes,
		Discount:         r.Discount,
		Items:            make([]sale.CartItem, 0, len(r.Items)),
	}

	for i, item := range r.Items {
		productID, err := id.Parse(item.ProductID)
		if err != nil {
			return in, apperror.NewValidation("invalid product id").
				WithDetail("lineNo", i+1).
				WithDetail("productId", item.ProductID)
		}
		in.Items = append(in.Items, sale.CartItem{
			ProductID: productID,
			Quantity:  item.Quantity,
		})
	}

	return in, nil
}
