package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionauth/internal/domain"
	"sessionauth/internal/pkg/jwt"
	"sessionauth/internal/pkg/response"
	"sessionauth/internal/repository"
)

type stubUsers map[int64]*domain.User

func (s stubUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

type failingUsers struct{}

func (failingUsers) GetByID(context.Context, int64) (*domain.User, error) {
	return nil, errors.New("db down")
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func setupAuth(t *testing.T, users UserLookup) (*gin.Engine, *jwt.Codec, *clock) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	clk := &clock{now: time.Now()}
	codec, err := jwt.NewCodec("access-secret", 15*time.Minute, "refresh-secret", time.Hour, clk.Now)
	require.NoError(t, err)

	router := gin.New()
	router.Use(JWTAuth(codec, users))
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetInt64(CtxUserID),
			"role":    c.GetString(CtxRole),
		})
	})
	return router, codec, clk
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

var alice = &domain.User{ID: 42, Username: "alice", Email: "alice@x.com", Role: domain.RoleUser, PasswordHash: "secret"}

func TestJWTAuth_ValidBearerToken(t *testing.T) {
	router, codec, _ := setupAuth(t, stubUsers{42: alice})
	token, err := codec.IssueAccess(jwt.Subject{ID: 42, Username: "alice", Email: "alice@x.com"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := serve(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":42`)
	assert.Contains(t, w.Body.String(), `"role":"user"`)
}

func TestJWTAuth_ValidCookieToken(t *testing.T) {
	router, codec, _ := setupAuth(t, stubUsers{42: alice})
	token, err := codec.IssueAccess(jwt.Subject{ID: 42})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	w := serve(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuth_Rejections(t *testing.T) {
	router, codec, clk := setupAuth(t, stubUsers{42: alice})

	valid, err := codec.IssueAccess(jwt.Subject{ID: 42})
	require.NoError(t, err)
	unknown, err := codec.IssueAccess(jwt.Subject{ID: 99})
	require.NoError(t, err)
	noID, err := codec.IssueAccess(jwt.Subject{Username: "ghost"})
	require.NoError(t, err)
	refresh, err := codec.IssueRefresh(jwt.Subject{ID: 42})
	require.NoError(t, err)

	cases := []struct {
		name    string
		header  string
		advance time.Duration
		message string
	}{
		{"no token", "", 0, "Access token missing"},
		{"wrong scheme", "Token " + valid, 0, "Access token missing"},
		{"garbage", "Bearer invalid-jwt-here", 0, "Invalid access token"},
		{"refresh token", "Bearer " + refresh, 0, "Invalid access token"},
		{"missing id", "Bearer " + noID, 0, "Malformed access token"},
		{"unknown user", "Bearer " + unknown, 0, "User not found or invalid token"},
		{"expired", "Bearer " + valid, 16 * time.Minute, "Access token has expired"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start := clk.now
			clk.now = clk.now.Add(tc.advance)
			defer func() { clk.now = start }()

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := serve(router, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, response.CodeUnauthorized, errorCode(t, w))
			assert.Contains(t, w.Body.String(), tc.message)
		})
	}
}

func TestJWTAuth_LookupFailureIsInternal(t *testing.T) {
	router, codec, _ := setupAuth(t, failingUsers{})
	token, err := codec.IssueAccess(jwt.Subject{ID: 42})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := serve(router, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, response.CodeInternal, errorCode(t, w))
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	build := func(role string) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) {
			if role != "" {
				c.Set(CtxRole, role)
			}
		})
		r.GET("/admin", AdminOnly(), func(c *gin.Context) { c.Status(http.StatusOK) })
		r.GET("/staff", RequireRole(domain.RoleHost, domain.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	get := func(r *gin.Engine, path string) int {
		return serve(r, httptest.NewRequest(http.MethodGet, path, nil)).Code
	}

	assert.Equal(t, http.StatusOK, get(build("admin"), "/admin"))
	assert.Equal(t, http.StatusForbidden, get(build("user"), "/admin"))
	assert.Equal(t, http.StatusUnauthorized, get(build(""), "/admin"))
	assert.Equal(t, http.StatusOK, get(build("host"), "/staff"))
	assert.Equal(t, http.StatusForbidden, get(build("user"), "/staff"))
}
