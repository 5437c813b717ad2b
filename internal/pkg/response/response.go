package response

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"sessionauth/internal/pkg/apperror"
)

// Error codes written by middleware that answers before any handler runs. They match the codes
// handlers derive from apperror kinds.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = string(apperror.KindUnauthorized)
	CodeForbidden    = string(apperror.KindForbidden)
	CodeInternal     = string(apperror.KindInternal)
)

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func SuccessWithMessage(c *gin.Context, statusCode int, message string, data interface{}) {
	body := gin.H{
		"success": true,
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(statusCode, body)
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

func ValidationError(c *gin.Context, details any) {
	ErrorWithDetails(c, http.StatusBadRequest, CodeValidation, "Validation failed", details)
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind apperror.Kind) int {
	switch kind {
	case apperror.KindBadRequest:
		return http.StatusBadRequest
	case apperror.KindUnauthorized:
		return http.StatusUnauthorized
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Responder writes tagged errors. Internal errors are always logged with their cause; the
// cause is only echoed to the client when ExposeInternal is set.
type Responder struct {
	Log            *slog.Logger
	ExposeInternal bool
}

func (r Responder) FromError(c *gin.Context, err error) {
	appErr := apperror.As(err)
	status := StatusOf(appErr.Kind)

	if appErr.Kind == apperror.KindInternal {
		if r.Log != nil {
			r.Log.Error("request failed",
				"method", c.Request.Method,
				"path", c.FullPath(),
				"error", err,
			)
		}
		if r.ExposeInternal && appErr.Err != nil {
			ErrorWithDetails(c, status, string(appErr.Kind), appErr.Message, appErr.Err.Error())
			return
		}
		Error(c, status, string(appErr.Kind), appErr.Message)
		return
	}

	if appErr.Details != nil {
		ErrorWithDetails(c, status, string(appErr.Kind), appErr.Message, appErr.Details)
		return
	}
	Error(c, status, string(appErr.Kind), appErr.Message)
}
