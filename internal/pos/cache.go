// Package pos implements the terminal-side cart and catalog cache. The cache
// lets a register reject obviously oversold carts before any round trip; the
// server transaction remains the source of truth and may still refuse a sale
// the cache believed possible.
package pos

import (
	"sync"

	"kassa/internal/core/apperror"
	"kassa/internal/core/id"
	"kassa/internal/core/types"
	"kassa/internal/domain/product"
	"kassa/internal/events"
)

// ProductView is a catalog entry as the terminal sees it. StockQuantity is a
// snapshot, refreshed by stock:update events, and acts as the cart ceiling.
type ProductView struct {
	ProductID     id.ID       `json:"productId"`
	SKU           string      `json:"sku"`
	Name          string      `json:"name"`
	SellingPrice  types.Money `json:"sellingPrice"`
	TaxRate       types.Money `json:"taxRate"`
	StockQuantity int64       `json:"stockQuantity"`
	MinQuantity   int64       `json:"minQuantity"`
}

// Line is one cart line with amounts computed the same way the server
// computes them.
type Line struct {
	ProductID   id.ID       `json:"productId"`
	ProductName string      `json:"productName"`
	Quantity    int64       `json:"quantity"`
	UnitPrice   types.Money `json:"unitPrice"`
	TaxRate     types.Money `json:"taxRate"`
	Subtotal    types.Money `json:"subtotal"`
	TaxAmount   types.Money `json:"taxAmount"`
	Total       types.Money `json:"total"`
}

// Totals is the running cart summary.
type Totals struct {
	Subtotal  types.Money `json:"subtotal"`
	TaxAmount types.Money `json:"taxAmount"`
	Total     types.Money `json:"total"`
	Lines     int         `json:"lines"`
	Units     int64       `json:"units"`
}

// CheckoutItem is one line of the payload submitted to the sales endpoint.
type CheckoutItem struct {
	ProductID id.ID `json:"productId"`
	Quantity  int64 `json:"quantity"`
}

// Cache is the per-terminal state: the store's catalog slice plus the open
// cart. Safe for concurrent use; the event listener and the UI goroutine both
// touch it.
type Cache struct {
	mu      sync.Mutex
	storeID id.ID

	products map[id.ID]*ProductView
	lines    []*Line
}

// NewCache creates a cache for one store.
func NewCache(storeID id.ID) *Cache {
	return &Cache{
		storeID:  storeID,
		products: make(map[id.ID]*ProductView),
	}
}

// Load replaces the catalog with the bootstrap listing. The open cart is
// cleared: its price and stock snapshots are no longer trustworthy.
func (c *Cache) Load(listing []product.StoreProduct) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.products = make(map[id.ID]*ProductView, len(listing))
	for _, sp := range listing {
		c.products[sp.ID] = &ProductView{
			ProductID:     sp.ID,
			SKU:           sp.SKU,
			Name:          sp.Name,
			SellingPrice:  sp.SellingPrice,
			TaxRate:       sp.TaxRate,
			StockQuantity: sp.StockQuantity,
			MinQuantity:   sp.MinQuantity,
		}
	}
	c.lines = nil
}

// Products returns the catalog snapshot.
func (c *Cache) Products() []ProductView {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ProductView, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, *p)
	}
	return out
}

// AddItem puts one unit of the product in the cart, merging with an existing
// line. Rejected locally when the snapshot says the store cannot cover it.
func (c *Cache) AddItem(productID id.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bump(productID, 1)
}

// Increment raises an existing line by one unit.
func (c *Cache) Increment(productID id.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.findLine(productID) == nil {
		return apperror.NewNotFound("cart line", productID)
	}
	return c.bump(productID, 1)
}

// Decrement lowers a line by one unit, removing it at zero.
func (c *Cache) Decrement(productID id.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := c.findLine(productID)
	if line == nil {
		return apperror.NewNotFound("cart line", productID)
	}

	line.Quantity--
	if line.Quantity <= 0 {
		c.removeLine(productID)
		return nil
	}
	c.recompute(line)
	return nil
}

// Remove drops a line entirely.
func (c *Cache) Remove(productID id.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.findLine(productID) == nil {
		return apperror.NewNotFound("cart line", productID)
	}
	c.removeLine(productID)
	return nil
}

// Clear empties the cart, keeping the catalog.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}

// bump must be called with c.mu held.
func (c *Cache) bump(productID id.ID, delta int64) error {
	view, ok := c.products[productID]
	if !ok {
		return apperror.NewProductNotFound(productID)
	}

	line := c.findLine(productID)
	current := int64(0)
	if line != nil {
		current = line.Quantity
	}

	if current+delta > view.StockQuantity {
		return apperror.NewInsufficientStock(view.Name, current+delta, view.StockQuantity)
	}

	if line == nil {
		line = &Line{
			ProductID:   productID,
			ProductName: view.Name,
			UnitPrice:   view.SellingPrice,
			TaxRate:     view.TaxRate,
		}
		c.lines = append(c.lines, line)
	}
	line.Quantity = current + delta
	c.recompute(line)
	return nil
}

// ApplyStockUpdate refreshes the snapshot from a stock:update event. Updates
// for other stores are ignored. Cart quantities are never reduced here: if the
// cart now exceeds the snapshot, the server will reject the checkout and the
// cashier resolves it.
func (c *Cache) ApplyStockUpdate(payload events.StockUpdatePayload) {
	if payload.StoreID != c.storeID {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if view, ok := c.products[payload.ProductID]; ok {
		view.StockQuantity = payload.NewQuantity
	}
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cache) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Line, len(c.lines))
	for i, line := range c.lines {
		out[i] = *line
	}
	return out
}

// CartTotals sums the cart.
func (c *Cache) CartTotals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := Totals{
		Subtotal:  types.Zero(),
		TaxAmount: types.Zero(),
		Total:     types.Zero(),
	}
	for _, line := range c.lines {
		t.Subtotal = t.Subtotal.Add(line.Subtotal)
		t.TaxAmount = t.TaxAmount.Add(line.TaxAmount)
		t.Total = t.Total.Add(line.Total)
		t.Lines++
		t.Units += line.Quantity
	}
	return t
}

// Checkout returns the items payload for the sales endpoint. The cart is kept
// until the caller confirms the sale with Clear: a rejected checkout must not
// lose the cashier's cart.
func (c *Cache) Checkout() ([]CheckoutItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.lines) == 0 {
		return nil, apperror.NewEmptyCart()
	}

	items := make([]CheckoutItem, len(c.lines))
	for i, line := range c.lines {
		items[i] = CheckoutItem{ProductID: line.ProductID, Quantity: line.Quantity}
	}
	return items, nil
}

func (c *Cache) findLine(productID id.ID) *Line {
	for _, line := range c.lines {
		if line.ProductID == productID {
			return line
		}
	}
	return nil
}

func (c *Cache) removeLine(productID id.ID) {
	for i, line := range c.lines {
		if line.ProductID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

// recompute must be called with c.mu held.
func (c *Cache) recompute(line *Line) {
	line.Subtotal = line.UnitPrice.Mul(types.NewMoneyFromInt(line.Quantity))
	line.TaxAmount = types.Percent(line.Subtotal, line.TaxRate)
	line.Total = line.Subtotal.Add(line.TaxAmount)
}
