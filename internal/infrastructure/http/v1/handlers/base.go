// Package handlers provides HTTP handlers for the v1 API.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kassa/internal/core/appctx"
	"kassa/internal/core/apperror"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers the error on the Gin context and aborts the request.
// The JSON response is produced by middleware.ErrorHandler (single source of truth).
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// User returns the authenticated caller.
func (h *BaseHandler) User(c *gin.Context) *appctx.UserContext {
	return appctx.GetUser(c.Request.Context())
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}
