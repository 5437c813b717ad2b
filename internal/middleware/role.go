package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sessionauth/internal/domain"
	"sessionauth/internal/pkg/response"
)

// RequireRole ensures that the authenticated user has one of the given roles
func RequireRole(roles ...domain.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(CtxRole)
		if role == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Authentication required")
			c.Abort()
			return
		}

		for _, allowed := range roles {
			if domain.UserRole(role) == allowed {
				c.Next()
				return
			}
		}

		response.Error(c, http.StatusForbidden, response.CodeForbidden, "Access denied: insufficient permissions")
		c.Abort()
	}
}

// AdminOnly middleware requires admin role
func AdminOnly() gin.HandlerFunc {
	return RequireRole(domain.RoleAdmin)
}
