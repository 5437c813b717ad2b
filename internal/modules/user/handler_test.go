package user

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionauth/internal/middleware"
	"sessionauth/internal/pkg/logger"
	"sessionauth/internal/pkg/response"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func setupRouter(t *testing.T, env *testEnv) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(env.svc, nil, response.Responder{Log: logger.Discard()})

	r := gin.New()
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth(env.codec, env.users))
	h.RegisterRoutes(protected)
	return r
}

func call(t *testing.T, r http.Handler, method, path, accessToken string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func TestHandler_RequiresAccessToken(t *testing.T) {
	env := newTestEnv(t)
	r := setupRouter(t, env)

	w, res := call(t, r, http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Access token missing", res.Error.Message)
}

func TestHandler_GetAndUpdateMe(t *testing.T) {
	env := newTestEnv(t)
	r := setupRouter(t, env)
	alice := env.register(t, "alice", "+14155550100")
	env.register(t, "bob", "+14155550101")

	w, res := call(t, r, http.MethodGet, "/api/v1/users/me", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(res.Data), `"username":"alice"`)
	assert.NotContains(t, string(res.Data), "password")

	w, res = call(t, r, http.MethodPut, "/api/v1/users/me", alice.AccessToken, map[string]string{"username": "bob"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Username already in use", res.Error.Message)

	w, res = call(t, r, http.MethodPut, "/api/v1/users/me", alice.AccessToken, map[string]string{"phone": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, res.Error.Details, "phone")

	w, res = call(t, r, http.MethodPut, "/api/v1/users/me", alice.AccessToken, map[string]string{"full_name": "Alice L"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Profile updated successfully", res.Message)
	assert.Contains(t, string(res.Data), `"full_name":"Alice L"`)
}

func TestHandler_ChangePassword(t *testing.T) {
	env := newTestEnv(t)
	r := setupRouter(t, env)
	alice := env.register(t, "alice", "+14155550100")

	w, res := call(t, r, http.MethodPost, "/api/v1/users/me/password", alice.AccessToken, map[string]string{
		"old_password":     "Secret#123",
		"new_password":     "Another#456",
		"confirm_password": "Another#999",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, res.Error.Details, "confirm_password")

	w, res = call(t, r, http.MethodPost, "/api/v1/users/me/password", alice.AccessToken, map[string]string{
		"old_password":     "nope",
		"new_password":     "Another#456",
		"confirm_password": "Another#456",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Old password is incorrect", res.Error.Message)

	w, res = call(t, r, http.MethodPost, "/api/v1/users/me/password", alice.AccessToken, map[string]string{
		"old_password":     "Secret#123",
		"new_password":     "Another#456",
		"confirm_password": "Another#456",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Password changed successfully", res.Message)

	w, res = call(t, r, http.MethodGet, "/api/v1/users/me/sessions", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sessions":[]}`, string(res.Data))
}

func TestHandler_ListSessionsMarksCookieSession(t *testing.T) {
	env := newTestEnv(t)
	r := setupRouter(t, env)
	alice := env.register(t, "alice", "+14155550100")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me/sessions", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookie, Value: alice.AccessToken})
	req.AddCookie(&http.Cookie{Name: middleware.RefreshTokenCookie, Value: alice.RefreshToken})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	var data struct {
		Sessions []SessionView `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &data))
	require.Len(t, data.Sessions, 1)
	assert.True(t, data.Sessions[0].Current)
	assert.Equal(t, laptop.IP, data.Sessions[0].IP)
}
