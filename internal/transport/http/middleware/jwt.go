package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docrag/internal/pkg/jwtutil"
	"docrag/internal/transport/http/response"
)

const (
	ContextSubjectKey = "subject"
	ContextScopeKey   = "scope"
)

// AuthJWT requires a bearer token signed with secret. An empty secret turns
// the check off.
func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid authorization scheme")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextSubjectKey, claims.Subject)
		c.Set(ContextScopeKey, claims.Scope)
		c.Next()
	}
}

// RequireScope rejects tokens limited to another scope. Unscoped tokens and
// requests that went through a disabled AuthJWT pass.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		granted := c.GetString(ContextScopeKey)
		if granted != "" && granted != scope {
			response.Error(c, http.StatusForbidden, response.CodeForbidden, "token scope does not allow this operation")
			c.Abort()
			return
		}
		c.Next()
	}
}
