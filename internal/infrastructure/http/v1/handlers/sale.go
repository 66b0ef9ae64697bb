package handlers

import (
	"github.com/gin-gonic/gin"

	"kassa/internal/core/apperror"
	"kassa/internal/core/id"
	"kassa/internal/domain/sale"
	"kassa/internal/infrastructure/http/v1/dto"
)

// SaleHandler handles the sales endpoints.
type SaleHandler struct {
	*BaseHandler
	service *sale.Service
}

// NewSaleHandler creates a new sale handler.
func NewSaleHandler(base *BaseHandler, service *sale.Service) *SaleHandler {
	return &SaleHandler{BaseHandler: base, service: service}
}

// Create executes a checkout. Returns the committed sale with its items.
func (h *SaleHandler) Create(c *gin.Context) {
	var req dto.CreateSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, doc)
}

// Get returns one sale with its items.
func (h *SaleHandler) Get(c *gin.Context) {
	saleID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, doc)
}

// List returns a page of sales, newest first.
func (h *SaleHandler) List(c *gin.Context) {
	filter := sale.ListFilter{
		Page:  h.ParseIntQuery(c, "page", 1),
		Limit: h.ParseIntQuery(c, "limit", 20),
	}

	if storeID := c.Query("storeId"); storeID != "" {
		parsed, err := id.Parse(storeID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid storeId"))
			return
		}
		filter.StoreID = &parsed
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// RegisterRoutes registers sale routes.
func (h *SaleHandler) RegisterRoutes(rg *gin.RouterGroup, authorize func(resource, action string) gin.HandlerFunc) {
	rg.POST("", authorize("sale", "create"), h.Create)
	rg.GET("", authorize("sale", "read"), h.List)
	rg.GET("/:id", authorize("sale", "read"), h.Get)
}
