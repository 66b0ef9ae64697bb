package middleware

import (
	"github.com/gin-gonic/gin"

	"kassa/internal/core/appctx"
	"kassa/internal/core/security"
)

// Authorize middleware evaluates the policy for resource/action against the
// authenticated caller. Must run after Auth.
func Authorize(engine *security.PolicyEngine, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		if err := engine.Authorize(c.Request.Context(), user, resource, action); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}
