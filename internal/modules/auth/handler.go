package auth

import (
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"sessionauth/internal/middleware"
	"sessionauth/internal/pkg/apperror"
	"sessionauth/internal/pkg/response"
	"sessionauth/internal/pkg/upload"
	"sessionauth/internal/pkg/validator"
)

const (
	accessTokenCookie  = middleware.AccessTokenCookie
	refreshTokenCookie = middleware.RefreshTokenCookie
)

// AvatarStager validates a multipart avatar and stages it on disk.
type AvatarStager interface {
	SaveTemp(fileHeader *multipart.FileHeader) (string, error)
}

// CookieConfig controls the httpOnly token cookies set next to the JSON body.
type CookieConfig struct {
	Secure     bool
	SameSite   http.SameSite
	Path       string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Handler manages all HTTP interactions for authentication
type Handler struct {
	service   *Service
	avatars   AvatarStager
	cookies   CookieConfig
	responder response.Responder
}

func NewHandler(service *Service, avatars AvatarStager, cookies CookieConfig, responder response.Responder) *Handler {
	if cookies.Path == "" {
		cookies.Path = "/"
	}
	return &Handler{
		service:   service,
		avatars:   avatars,
		cookies:   cookies,
		responder: responder,
	}
}

func (h *Handler) RegisterRoutes(v1 *gin.RouterGroup) {
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/logout", h.Logout)
		authGroup.POST("/refresh-token", h.Refresh)
	}
}

// Register creates an account and opens its first session.
// @Summary	Register a user
// @Accept		json,mpfd
// @Success	201	{object}	map[string]interface{}
// @Failure	400,409	{object}	map[string]interface{}
// @Router		/auth/register [POST]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(c, errs)
		return
	}

	avatarPath, err := h.stageAvatar(c)
	if err != nil {
		h.responder.FromError(c, err)
		return
	}

	result, err := h.service.Register(c.Request.Context(), RegisterInput{
		FullName:   req.FullName,
		Username:   req.Username,
		Email:      req.Email,
		Phone:      req.Phone,
		Password:   req.Password,
		AvatarPath: avatarPath,
		Origin:     originOf(c),
	})
	if err != nil {
		h.responder.FromError(c, err)
		return
	}

	h.setAuthCookies(c, result.AccessToken, result.RefreshToken)
	response.SuccessWithMessage(c, http.StatusCreated, "User registered successfully", gin.H{
		"user":          result.User,
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
	})
}

// Login opens a session for an existing account.
// @Summary	Log in with email or username
// @Success	200	{object}	map[string]interface{}
// @Failure	400,401	{object}	map[string]interface{}
// @Router		/auth/login [POST]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(c, errs)
		return
	}

	result, err := h.service.Login(c.Request.Context(), LoginInput{
		EmailOrUsername: req.EmailOrUsername,
		Password:        req.Password,
		Origin:          originOf(c),
	})
	if err != nil {
		h.responder.FromError(c, err)
		return
	}

	h.setAuthCookies(c, result.AccessToken, result.RefreshToken)
	response.SuccessWithMessage(c, http.StatusOK, "Login successful", gin.H{
		"user":          result.User,
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context(), refreshTokenFrom(c)); err != nil {
		h.responder.FromError(c, err)
		return
	}

	h.clearAuthCookies(c)
	response.SuccessWithMessage(c, http.StatusOK, "Logged out successfully", nil)
}

func (h *Handler) Refresh(c *gin.Context) {
	result, err := h.service.Refresh(c.Request.Context(), refreshTokenFrom(c), originOf(c))
	if err != nil {
		h.responder.FromError(c, err)
		return
	}

	h.setAuthCookies(c, result.AccessToken, result.RefreshToken)
	response.SuccessWithMessage(c, http.StatusOK, "Access token refreshed successfully", gin.H{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
	})
}

// stageAvatar returns "" when the request carries no avatar.
func (h *Handler) stageAvatar(c *gin.Context) (string, error) {
	if h.avatars == nil || c.ContentType() != binding.MIMEMultipartPOSTForm {
		return "", nil
	}
	return StageAvatar(c, h.avatars)
}

// StageAvatar stages the "avatar" form file of a multipart request.
func StageAvatar(c *gin.Context, stager AvatarStager) (string, error) {
	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", apperror.BadRequest("Invalid avatar upload")
	}

	path, err := stager.SaveTemp(fileHeader)
	switch {
	case err == nil:
		return path, nil
	case errors.Is(err, upload.ErrInvalidMimeType):
		return "", apperror.BadRequest("Only images (jpeg, jpg, png, webp) are allowed")
	case errors.Is(err, upload.ErrFileTooLarge):
		return "", apperror.BadRequest("Avatar must be at most 10 MB")
	case errors.Is(err, upload.ErrEmptyFile):
		return "", apperror.BadRequest("Avatar file is empty")
	default:
		return "", apperror.Internal(err)
	}
}

func (h *Handler) setAuthCookies(c *gin.Context, accessToken, refreshToken string) {
	c.SetSameSite(h.cookies.SameSite)
	c.SetCookie(accessTokenCookie, accessToken, int(h.cookies.AccessTTL.Seconds()), h.cookies.Path, "", h.cookies.Secure, true)
	c.SetCookie(refreshTokenCookie, refreshToken, int(h.cookies.RefreshTTL.Seconds()), h.cookies.Path, "", h.cookies.Secure, true)
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	c.SetSameSite(h.cookies.SameSite)
	c.SetCookie(accessTokenCookie, "", -1, h.cookies.Path, "", h.cookies.Secure, true)
	c.SetCookie(refreshTokenCookie, "", -1, h.cookies.Path, "", h.cookies.Secure, true)
}

// refreshTokenFrom prefers the cookie and falls back to the JSON body.
func refreshTokenFrom(c *gin.Context) string {
	if token, err := c.Cookie(refreshTokenCookie); err == nil && token != "" {
		return token
	}
	var req RefreshRequest
	_ = c.ShouldBindJSON(&req)
	return req.RefreshToken
}

func originOf(c *gin.Context) Origin {
	return Origin{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
