package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"kassa/internal/core/appctx"
	"kassa/internal/core/apperror"
)

// JWTValidator interface for token validation.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.UserContext, error)
}

// Auth middleware validates JWT tokens and populates user context.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := extractToken(c)
		if !ok {
			abortUnauthorized(c, "missing or malformed authorization header")
			return
		}

		user, err := validator.ValidateToken(tokenString)
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid token"))
			c.Abort()
			return
		}

		ctx := appctx.WithUser(c.Request.Context(), user)
		c.Request = c.Request.WithContext(ctx)

		c.Set("user_id", user.UserID)
		c.Set("company_id", user.CompanyID)

		c.Next()
	}
}

// extractToken reads the bearer token. WebSocket clients from browsers cannot
// set headers on the handshake, so a `token` query parameter is accepted too.
func extractToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1], true
		}
		return "", false
	}

	if token := c.Query("token"); token != "" {
		return token, true
	}

	return "", false
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
