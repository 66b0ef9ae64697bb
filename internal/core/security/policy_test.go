package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kassa/internal/core/appctx"
	"kassa/internal/core/apperror"
)

func cashier(storeID string) *appctx.UserContext {
	return &appctx.UserContext{
		UserID:      "u1",
		CompanyID:   "c1",
		StoreID:     storeID,
		Roles:       []string{"cashier"},
		Permissions: []string{"sales:create", "sales:read", "stock:read", "products:read", "events:subscribe"},
		Active:      true,
	}
}

func TestAuthorize_DefaultPolicies(t *testing.T) {
	engine, err := NewDefaultPolicyEngine()
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("cashier with store can create sale", func(t *testing.T) {
		assert.NoError(t, engine.Authorize(ctx, cashier("s1"), "sale", "create"))
	})

	t.Run("cashier without store cannot create sale", func(t *testing.T) {
		err := engine.Authorize(ctx, cashier(""), "sale", "create")
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeForbidden, appErr.Code)
	})

	t.Run("cashier cannot adjust stock", func(t *testing.T) {
		assert.Error(t, engine.Authorize(ctx, cashier("s1"), "stock", "adjust"))
	})

	t.Run("super admin bypasses permission checks", func(t *testing.T) {
		admin := &appctx.UserContext{UserID: "a1", IsSuperAdmin: true, Active: true}
		assert.NoError(t, engine.Authorize(ctx, admin, "stock", "adjust"))
		assert.NoError(t, engine.Authorize(ctx, admin, "sale", "create"))
	})

	t.Run("nil user is unauthorized", func(t *testing.T) {
		err := engine.Authorize(ctx, nil, "sale", "create")
		require.Error(t, err)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)
	})

	t.Run("unknown policy denies", func(t *testing.T) {
		assert.Error(t, engine.Authorize(ctx, cashier("s1"), "sale", "void"))
	})
}

func TestRegister_RejectsBrokenPolicies(t *testing.T) {
	engine, err := NewPolicyEngine()
	require.NoError(t, err)

	assert.Error(t, engine.Register("sale", "create", `this is not CEL`), "syntax error")
	assert.Error(t, engine.Register("sale", "create", `store_id`), "non-bool result")
	assert.NoError(t, engine.Register("sale", "create", `"manager" in roles`))
}

func TestAuthorize_CustomRolePolicy(t *testing.T) {
	engine, err := NewPolicyEngine()
	require.NoError(t, err)
	require.NoError(t, engine.Register("report", "export", `"manager" in roles && company_id != ""`))

	ctx := context.Background()

	manager := &appctx.UserContext{UserID: "m1", CompanyID: "c1", Roles: []string{"manager"}, Active: true}
	assert.NoError(t, engine.Authorize(ctx, manager, "report", "export"))
	assert.Error(t, engine.Authorize(ctx, cashier("s1"), "report", "export"))
}
