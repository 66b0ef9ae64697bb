// Package appctx provides request-scoped values extraction.
package appctx

import (
	"context"
)

// UserContext contains authenticated caller information.
// CompanyID scopes every data access; StoreID is the cashier's assignment
// and may be empty for back-office users.
type UserContext struct {
	UserID       string
	CompanyID    string
	StoreID      string
	Email        string
	Roles        []string
	Permissions  []string
	IsSuperAdmin bool
	Active       bool
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// GetCompanyID returns company ID from context or empty string.
func GetCompanyID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.CompanyID
	}
	return ""
}

// GetStoreID returns the caller's assigned store or empty string.
func GetStoreID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.StoreID
	}
	return ""
}

// HasRole checks if user has specific role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission checks if user has specific permission.
// Super admins implicitly hold every permission.
func HasPermission(ctx context.Context, perm string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	if u.IsSuperAdmin {
		return true
	}
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
