package user

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"sessionauth/internal/middleware"
	"sessionauth/internal/modules/auth"
	"sessionauth/internal/pkg/response"
	"sessionauth/internal/pkg/validator"
)

type Handler struct {
	service   *Service
	avatars   auth.AvatarStager
	responder response.Responder
}

func NewHandler(service *Service, avatars auth.AvatarStager, responder response.Responder) *Handler {
	return &Handler{service: service, avatars: avatars, responder: responder}
}

// RegisterRoutes mounts the /users/me routes. protected must already run JWTAuth.
func (h *Handler) RegisterRoutes(protected *gin.RouterGroup) {
	me := protected.Group("/users/me")
	{
		me.GET("", h.GetMe)
		me.PUT("", h.UpdateProfile)
		me.POST("/password", h.ChangePassword)
		me.GET("/sessions", h.ListSessions)
		me.DELETE("/sessions/:id", h.RevokeSession)
	}
}

func (h *Handler) GetMe(c *gin.Context) {
	u, err := h.service.GetMe(c.Request.Context(), c.GetInt64(middleware.CtxUserID))
	if err != nil {
		h.responder.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": u})
}

// UpdateProfile accepts JSON or multipart; a multipart request may carry an "avatar" file.
// @Summary	Update own profile
// @Accept		json,mpfd
// @Success	200	{object}	map[string]interface{}
// @Failure	400,409	{object}	map[string]interface{}
// @Router		/users/me [PUT]
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(c, errs)
		return
	}

	var avatarPath string
	if h.avatars != nil && c.ContentType() == binding.MIMEMultipartPOSTForm {
		path, err := auth.StageAvatar(c, h.avatars)
		if err != nil {
			h.responder.FromError(c, err)
			return
		}
		avatarPath = path
	}

	u, err := h.service.UpdateProfile(c.Request.Context(), c.GetInt64(middleware.CtxUserID), UpdateProfileInput{
		FullName:   req.FullName,
		Username:   req.Username,
		Email:      req.Email,
		Phone:      req.Phone,
		AvatarPath: avatarPath,
	})
	if err != nil {
		h.responder.FromError(c, err)
		return
	}

	message := "Profile updated successfully"
	if avatarPath != "" {
		message = "Profile updated, avatar upload in progress"
	}
	response.SuccessWithMessage(c, http.StatusOK, message, gin.H{"user": u})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(c, errs)
		return
	}

	err := h.service.ChangePassword(c.Request.Context(), c.GetInt64(middleware.CtxUserID), ChangePasswordInput{
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		h.responder.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Password changed successfully", nil)
}

func (h *Handler) ListSessions(c *gin.Context) {
	current, _ := c.Cookie(middleware.RefreshTokenCookie)
	sessions, err := h.service.ListSessions(c.Request.Context(), c.GetInt64(middleware.CtxUserID), current)
	if err != nil {
		h.responder.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) RevokeSession(c *gin.Context) {
	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid session ID")
		return
	}
	if err := h.service.RevokeSession(c.Request.Context(), c.GetInt64(middleware.CtxUserID), sessionID); err != nil {
		h.responder.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Session revoked", nil)
}
