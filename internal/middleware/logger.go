package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"

	"sessionauth/internal/pkg/response"
)

// RequestLogger writes one structured line per request.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		log.LogAttrs(c.Request.Context(), level, "request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
			slog.Int64("user_id", c.GetInt64(CtxUserID)),
			slog.String("request_id", requestID(c)),
		)
	}
}

// ErrorLogger logs errors attached to the context and recovers from panics.
// Panic details are only echoed to the client when exposeDetails is set.
func ErrorLogger(log *slog.Logger, exposeDetails bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err := fmt.Errorf("%v", recovered)
				log.Error("panic recovered",
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"request_id", requestID(c),
					"error", err,
					"stack", string(debug.Stack()),
				)

				body := gin.H{"code": response.CodeInternal, "message": "Internal Server Error"}
				if exposeDetails {
					body["details"] = err.Error()
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error":   body,
				})
				return
			}

			for _, err := range c.Errors {
				log.Error("request error",
					"type", fmt.Sprintf("%v", err.Type),
					"status", c.Writer.Status(),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"user_id", c.GetInt64(CtxUserID),
					"request_id", requestID(c),
					"error", err.Error(),
				)
			}
		}()

		c.Next()
	}
}

func requestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = c.GetHeader("X-Request-Id")
	}
	return requestID
}
