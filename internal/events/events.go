// Package events defines the realtime event vocabulary and the publisher
// contract. Publishing is observability, not consistency: a failed publish is
// logged and dropped, it never affects a committed transaction.
package events

import (
	"context"

	"kassa/internal/core/id"
	"kassa/internal/core/types"
)

// Kind identifies the event type on the wire.
type Kind string

const (
	KindStockUpdate   Kind = "stock:update"
	KindSaleCompleted Kind = "sale:completed"
	KindStockLow      Kind = "stock:low"
)

// Event is a single notification addressed to a company channel.
// sale:completed events are additionally delivered to the cross-company
// observer channel by the transport.
type Event struct {
	Kind      Kind  `json:"event"`
	CompanyID id.ID `json:"-"`
	Payload   any   `json:"data"`
}

// StockUpdatePayload reports a quantity change on one (product, store) row.
type StockUpdatePayload struct {
	ProductID   id.ID  `json:"productId"`
	StoreID     id.ID  `json:"storeId"`
	OldQuantity int64  `json:"oldQuantity"`
	NewQuantity int64  `json:"newQuantity"`
	Reason      string `json:"reason"`
}

// SaleCompletedItem is one line of a completed sale as shown to observers.
type SaleCompletedItem struct {
	ProductName string      `json:"productName"`
	Quantity    int64       `json:"quantity"`
	Total       types.Money `json:"total"`
}

// SaleCompletedPayload announces a committed sale.
type SaleCompletedPayload struct {
	SaleID     id.ID               `json:"saleId"`
	SaleNumber string              `json:"saleNumber"`
	StoreID    id.ID               `json:"storeId"`
	Total      types.Money         `json:"total"`
	Items      []SaleCompletedItem `json:"items"`
}

// StockLowPayload warns that a product fell to or below its minimum.
type StockLowPayload struct {
	ProductID       id.ID  `json:"productId"`
	StoreID         id.ID  `json:"storeId"`
	ProductName     string `json:"productName"`
	CurrentQuantity int64  `json:"currentQuantity"`
	MinQuantity     int64  `json:"minQuantity"`
}

// Publisher delivers events to live subscribers.
// Implementations must be safe for concurrent use. The realtime hub is the
// production implementation; NopPublisher serves environments without a
// realtime channel (workers, tests, CLI tools).
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

var _ Publisher = NopPublisher{}
