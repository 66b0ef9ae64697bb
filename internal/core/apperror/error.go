// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes following domain-driven design
const (
	// Infrastructure errors (5xx)
	CodeInternal    = "INTERNAL_ERROR"
	CodeDatabase    = "DATABASE_ERROR"
	CodeTransaction = "TRANSACTION_FAILURE"

	// Validation errors (400)
	CodeValidation      = "VALIDATION_ERROR"
	CodeEmptyCart       = "EMPTY_CART"
	CodeNoStoreAssigned = "NO_STORE_ASSIGNED"

	// Business rule violations (400 on the sales surface)
	CodeInsufficientStock = "INSUFFICIENT_STOCK"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict  = "CONFLICT"
	CodeDuplicate = "DUPLICATE_ENTRY"
)

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewDatabase creates a database error (500)
func NewDatabase(err error) *AppError {
	return &AppError{
		Code:       CodeDatabase,
		Message:    "Database operation failed",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewEmptyCart creates the empty-cart validation error.
func NewEmptyCart() *AppError {
	return &AppError{
		Code:       CodeEmptyCart,
		Message:    "Sale must contain at least one item",
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNoStoreAssigned is returned when a cashier without a store assignment
// attempts a store-scoped operation.
func NewNoStoreAssigned() *AppError {
	return &AppError{
		Code:       CodeNoStoreAssigned,
		Message:    "User has no store assigned",
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewProductNotFound is the sale-surface variant of NewNotFound: the sales
// endpoint reports unknown products as a caller error (400), not a missing route.
func NewProductNotFound(id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    "Product not found",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"entity": "product", "id": id},
	}
}

// NewInsufficientStock creates a stock shortage error.
// The message embeds the product name and both quantities so POS clients can
// surface it verbatim.
func NewInsufficientStock(productName string, requested, available int64) *AppError {
	return &AppError{
		Code: CodeInsufficientStock,
		Message: fmt.Sprintf("Insufficient stock for %s: requested %d, available %d",
			productName, requested, available),
		HTTPStatus: http.StatusBadRequest,
		Details: map[string]any{
			"product":   productName,
			"requested": requested,
			"available": available,
		},
	}
}

// NewTransactionFailure wraps a write/commit/lock error (500).
// The cause is logged, never exposed.
func NewTransactionFailure(err error) *AppError {
	return &AppError{
		Code:       CodeTransaction,
		Message:    "Transaction failed",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsInsufficientStock checks if error is CodeInsufficientStock
func IsInsufficientStock(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeInsufficientStock
	}
	return false
}
