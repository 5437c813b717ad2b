package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sessionauth/internal/pkg/response"
)

// InternalTokenAuth protects operator endpoints with a static bearer token. An empty token
// disables the endpoints entirely. A non-empty allowedIPs list restricts callers by client IP.
func InternalTokenAuth(expected string, allowedIPs []string, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			logAuthFailure(log, c, http.StatusForbidden, "disabled")
			response.Error(c, http.StatusForbidden, response.CodeForbidden, "Internal API disabled")
			c.Abort()
			return
		}

		if !ipAllowed(c, allowedIPs) {
			logAuthFailure(log, c, http.StatusForbidden, "ip_not_allowed")
			response.Error(c, http.StatusForbidden, response.CodeForbidden, "IP not allowed")
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logAuthFailure(log, c, http.StatusUnauthorized, "missing_auth")
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Authorization header is required")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			logAuthFailure(log, c, http.StatusUnauthorized, "invalid_auth_format")
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Authorization header must be 'Bearer <token>'")
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(expected)) != 1 {
			logAuthFailure(log, c, http.StatusForbidden, "invalid_token")
			response.Error(c, http.StatusForbidden, response.CodeForbidden, "Invalid internal token")
			c.Abort()
			return
		}

		c.Next()
	}
}

func ipAllowed(c *gin.Context, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	clientIP := c.ClientIP()
	for _, ip := range allowed {
		if ip == clientIP {
			return true
		}
	}
	return false
}

func logAuthFailure(log *slog.Logger, c *gin.Context, status int, reason string) {
	log.Warn("internal auth rejected",
		"status", status,
		"reason", reason,
		"client_ip", c.ClientIP(),
		"request_id", requestID(c),
	)
}
