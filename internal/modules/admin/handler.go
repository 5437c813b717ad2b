package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sessionauth/internal/middleware"
	"sessionauth/internal/pkg/response"
)

type Handler struct {
	service   *Service
	responder response.Responder
}

func NewHandler(service *Service, responder response.Responder) *Handler {
	return &Handler{service: service, responder: responder}
}

// RegisterRoutes mounts the admin routes. admin must already run JWTAuth and AdminOnly.
func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/users/:id", h.GetUser)
	admin.GET("/users/:id/sessions", h.ListUserSessions)
	admin.POST("/users/:id/sessions/revoke", h.RevokeUserSessions)
	admin.DELETE("/users/:id/sessions/:sessionId", h.RevokeSession)
}

// GetUser returns any user's public profile.
// @Summary	Get user
// @Tags		Admin
// @Security	BearerAuth
// @Param		id	path	int	true	"User ID"
// @Success	200	{object}	map[string]interface{}
// @Failure	403,404	{object}	map[string]interface{}
// @Router		/admin/users/{id} [GET]
func (h *Handler) GetUser(c *gin.Context) {
	userID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return
	}

	u, err := h.service.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.responder.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": u})
}

func (h *Handler) ListUserSessions(c *gin.Context) {
	userID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return
	}

	sessions, err := h.service.ListUserSessions(c.Request.Context(), userID)
	if err != nil {
		h.responder.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// RevokeUserSessions forces a user to log in again on every device.
// @Summary	Revoke all sessions of a user
// @Tags		Admin
// @Security	BearerAuth
// @Param		id	path	int	true	"User ID"
// @Success	200	{object}	map[string]interface{}
// @Failure	403,404	{object}	map[string]interface{}
// @Router		/admin/users/{id}/sessions/revoke [POST]
func (h *Handler) RevokeUserSessions(c *gin.Context) {
	userID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return
	}

	revoked, err := h.service.RevokeUserSessions(c.Request.Context(), c.GetInt64(middleware.CtxUserID), userID)
	if err != nil {
		h.responder.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Sessions revoked", gin.H{"revoked": revoked})
}

func (h *Handler) RevokeSession(c *gin.Context) {
	userID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return
	}
	sessionID, err := parseIDParam(c, "sessionId")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid session ID")
		return
	}

	if err := h.service.RevokeSession(c.Request.Context(), c.GetInt64(middleware.CtxUserID), userID, sessionID); err != nil {
		h.responder.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Session revoked", nil)
}

func parseIDParam(c *gin.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}
