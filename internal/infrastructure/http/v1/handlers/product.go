package handlers

import (
	"github.com/gin-gonic/gin"

	"kassa/internal/core/apperror"
	"kassa/internal/core/id"
	"kassa/internal/domain/product"
)

// ProductHandler serves the POS bootstrap catalog.
type ProductHandler struct {
	*BaseHandler
	repo product.Repository
}

// NewProductHandler creates a new product handler.
func NewProductHandler(base *BaseHandler, repo product.Repository) *ProductHandler {
	return &ProductHandler{BaseHandler: base, repo: repo}
}

// List returns the caller's active products joined with their stock in the
// caller's store. This is the listing a register loads at startup.
func (h *ProductHandler) List(c *gin.Context) {
	user := h.User(c)

	companyID, err := id.Parse(user.CompanyID)
	if err != nil {
		h.Error(c, apperror.NewUnauthorized("invalid company in token"))
		return
	}

	rawStoreID := c.Query("storeId")
	if rawStoreID == "" {
		rawStoreID = user.StoreID
	}
	if rawStoreID == "" {
		h.Error(c, apperror.NewNoStoreAssigned())
		return
	}
	storeID, err := id.Parse(rawStoreID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid storeId"))
		return
	}

	listing, err := h.repo.ListByStore(c.Request.Context(), companyID, storeID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": listing})
}

// RegisterRoutes registers product routes.
func (h *ProductHandler) RegisterRoutes(rg *gin.RouterGroup, authorize func(resource, action string) gin.HandlerFunc) {
	rg.GET("", authorize("product", "read"), h.List)
}
