package dto

// AdjustStockRequest sets the absolute quantity of one stock record.
// StoreID defaults to the caller's store.
type AdjustStockRequest struct {
	ProductID string `json:"productId" binding:"required"`
	StoreID   string `json:"storeId"`
	Quantity  int64  `json:"quantity"`
	Notes     string `json:"notes"`
}
