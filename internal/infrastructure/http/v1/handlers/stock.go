package handlers

import (
	"github.com/gin-gonic/gin"

	"kassa/internal/core/apperror"
	"kassa/internal/core/id"
	"kassa/internal/domain/product"
	"kassa/internal/domain/stock"
	"kassa/internal/infrastructure/http/v1/dto"
)

// StockHandler handles the stock endpoints.
type StockHandler struct {
	*BaseHandler
	service  *stock.Service
	products product.Repository
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *stock.Service, products product.Repository) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service, products: products}
}

// List returns the stock records of a store. Defaults to the caller's store.
func (h *StockHandler) List(c *gin.Context) {
	storeID, ok := h.resolveStoreID(c, c.Query("storeId"))
	if !ok {
		return
	}

	records, err := h.service.ListByStore(c.Request.Context(), storeID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": records})
}

// Movements returns the movement history.
func (h *StockHandler) Movements(c *gin.Context) {
	filter := stock.MovementFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	if productID := c.Query("productId"); productID != "" {
		parsed, err := id.Parse(productID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid productId"))
			return
		}
		filter.ProductID = &parsed
	}
	if storeID := c.Query("storeId"); storeID != "" {
		parsed, err := id.Parse(storeID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid storeId"))
			return
		}
		filter.StoreID = &parsed
	}
	if saleID := c.Query("saleId"); saleID != "" {
		parsed, err := id.Parse(saleID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid saleId"))
			return
		}
		filter.SaleID = &parsed
	}

	movements, err := h.service.Movements(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": movements})
}

// Adjust sets the absolute quantity of one stock record.
func (h *StockHandler) Adjust(c *gin.Context) {
	var req dto.AdjustStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	productID, err := id.Parse(req.ProductID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId"))
		return
	}

	storeID, ok := h.resolveStoreID(c, req.StoreID)
	if !ok {
		return
	}

	user := h.User(c)
	userID, err := id.Parse(user.UserID)
	if err != nil {
		h.Error(c, apperror.NewUnauthorized("invalid user in token"))
		return
	}

	// The ledger does not know the catalog; the low-stock alert needs the
	// product name. This also keeps other tenants' products invisible.
	p, err := h.products.GetByID(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if p.CompanyID.String() != user.CompanyID {
		h.Error(c, apperror.NewNotFound("product", productID))
		return
	}

	change, err := h.service.SetAbsolute(c.Request.Context(), stock.SetAbsoluteInput{
		ProductID:   productID,
		StoreID:     storeID,
		NewQuantity: req.Quantity,
		UserID:      userID,
		ProductName: p.Name,
		Notes:       req.Notes,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, change)
}

// resolveStoreID parses the given store ID, falling back to the caller's
// store assignment.
func (h *StockHandler) resolveStoreID(c *gin.Context, raw string) (id.ID, bool) {
	if raw == "" {
		user := h.User(c)
		if user == nil || user.StoreID == "" {
			h.Error(c, apperror.NewNoStoreAssigned())
			return id.Nil(), false
		}
		raw = user.StoreID
	}

	storeID, err := id.Parse(raw)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid storeId"))
		return id.Nil(), false
	}
	return storeID, true
}

// RegisterRoutes registers stock routes.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup, authorize func(resource, action string) gin.HandlerFunc) {
	rg.GET("", authorize("stock", "read"), h.List)
	rg.GET("/movements", authorize("stock", "read"), h.Movements)
	rg.PUT("/adjust", authorize("stock", "adjust"), h.Adjust)
}
