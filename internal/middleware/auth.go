package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sessionauth/internal/domain"
	"sessionauth/internal/pkg/jwt"
	"sessionauth/internal/pkg/response"
	"sessionauth/internal/repository"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"

	// Context keys set by JWTAuth.
	CtxUserID   = "user_id"
	CtxUsername = "username"
	CtxRole     = "role"
	CtxUser     = "user"
)

type AccessTokenVerifier interface {
	VerifyAccess(token string) (*jwt.Claims, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// JWTAuth requires a valid access token from the accessToken cookie or a Bearer header and
// loads the user it names.
func JWTAuth(verifier AccessTokenVerifier, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := accessTokenFrom(c)
		if token == "" {
			abortUnauthorized(c, "Access token missing")
			return
		}

		claims, err := verifier.VerifyAccess(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortUnauthorized(c, "Access token has expired")
				return
			}
			abortUnauthorized(c, "Invalid access token")
			return
		}
		if claims.ID == 0 {
			abortUnauthorized(c, "Malformed access token")
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.ID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				abortUnauthorized(c, "User not found or invalid token")
				return
			}
			_ = c.Error(err)
			response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Authentication failed")
			c.Abort()
			return
		}

		c.Set(CtxUserID, user.ID)
		c.Set(CtxUsername, user.Username)
		c.Set(CtxRole, string(user.Role))
		c.Set(CtxUser, user.Public())
		c.Next()
	}
}

func accessTokenFrom(c *gin.Context) string {
	if token, err := c.Cookie(AccessTokenCookie); err == nil && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token)
	}
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func abortUnauthorized(c *gin.Context, message string) {
	response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, message)
	c.Abort()
}
