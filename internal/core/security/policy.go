// Package security provides the authorization policy engine. Policies are CEL
// expressions evaluated against the caller identity, which keeps the rules
// declarative and hot-swappable without touching handler code.
package security

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"kassa/internal/core/appctx"
	"kassa/internal/core/apperror"
)

// PolicyEngine evaluates compiled CEL authorization policies keyed by
// "resource:action".
type PolicyEngine struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewPolicyEngine creates an engine with an empty policy set.
func NewPolicyEngine() (*PolicyEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("permissions", cel.ListType(cel.StringType)),
		cel.Variable("roles", cel.ListType(cel.StringType)),
		cel.Variable("store_id", cel.StringType),
		cel.Variable("company_id", cel.StringType),
		cel.Variable("is_super", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	return &PolicyEngine{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// NewDefaultPolicyEngine creates an engine preloaded with the built-in
// policies.
func NewDefaultPolicyEngine() (*PolicyEngine, error) {
	engine, err := NewPolicyEngine()
	if err != nil {
		return nil, err
	}
	for key, expr := range DefaultPolicies {
		if err := engine.RegisterKey(key, expr); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

// DefaultPolicies is the built-in policy set. The super admin bypass is spelled
// out per rule so a policy can opt out of it.
var DefaultPolicies = map[string]string{
	"sale:create":  `is_super || ("sales:create" in permissions && store_id != "")`,
	"sale:read":    `is_super || "sales:read" in permissions`,
	"stock:read":   `is_super || "stock:read" in permissions`,
	"stock:adjust": `is_super || "stock:adjust" in permissions`,
	"product:read": `is_super || "products:read" in permissions`,
	"events:watch": `is_super || "events:subscribe" in permissions`,
}

// Register compiles and stores a policy for resource/action.
func (e *PolicyEngine) Register(resource, action, expr string) error {
	return e.RegisterKey(resource+":"+action, expr)
}

// RegisterKey compiles and stores a policy under an explicit key.
func (e *PolicyEngine) RegisterKey(key, expr string) error {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("compile policy %q: %w", key, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("policy %q must evaluate to bool, got %v", key, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return fmt.Errorf("build policy program %q: %w", key, err)
	}

	e.mu.Lock()
	e.programs[key] = program
	e.mu.Unlock()
	return nil
}

// Authorize evaluates the policy for resource/action against the caller.
// Unknown policies deny; a broken evaluation denies.
func (e *PolicyEngine) Authorize(ctx context.Context, user *appctx.UserContext, resource, action string) error {
	if user == nil {
		return apperror.NewUnauthorized("authentication required")
	}

	key := resource + ":" + action
	e.mu.RLock()
	program, ok := e.programs[key]
	e.mu.RUnlock()
	if !ok {
		return apperror.NewForbidden(fmt.Sprintf("no policy for %s", key))
	}

	out, _, err := program.Eval(map[string]any{
		"permissions": user.Permissions,
		"roles":       user.Roles,
		"store_id":    user.StoreID,
		"company_id":  user.CompanyID,
		"is_super":    user.IsSuperAdmin,
	})
	if err != nil {
		return apperror.NewForbidden(fmt.Sprintf("policy %s evaluation failed", key))
	}

	allowed, ok := out.Value().(bool)
	if !ok || !allowed {
		return apperror.NewForbidden(fmt.Sprintf("access to %s denied", key))
	}
	return nil
}
