package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionauth/internal/pkg/apperror"
	"sessionauth/internal/pkg/logger"
)

type envelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details"`
	} `json:"error"`
}

func render(t *testing.T, r Responder, err error) (int, envelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

	r.FromError(c, err)

	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestFromError_KindMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperror.BadRequest("Refresh token is required"), http.StatusBadRequest, "BAD_REQUEST"},
		{apperror.Unauthorized("Invalid credentials"), http.StatusUnauthorized, CodeUnauthorized},
		{apperror.Forbidden(""), http.StatusForbidden, CodeForbidden},
		{apperror.NotFound("User not found"), http.StatusNotFound, "NOT_FOUND"},
		{apperror.Conflict("Email already in use"), http.StatusConflict, "CONFLICT"},
	}
	for _, tc := range cases {
		status, body := render(t, Responder{}, tc.err)
		assert.Equal(t, tc.status, status)
		assert.False(t, body.Success)
		assert.Equal(t, tc.code, body.Error.Code)
		assert.Equal(t, apperror.As(tc.err).Message, body.Error.Message)
	}
}

func TestFromError_InternalHidesCauseOutsideDevelopment(t *testing.T) {
	cause := errors.New("pq: connection refused")

	status, body := render(t, Responder{Log: logger.Discard()}, cause)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, CodeInternal, body.Error.Code)
	assert.Equal(t, "Internal Server Error", body.Error.Message)
	assert.Nil(t, body.Error.Details)

	_, body = render(t, Responder{Log: logger.Discard(), ExposeInternal: true}, cause)
	assert.Equal(t, "pq: connection refused", body.Error.Details)
}

func TestFromError_Details(t *testing.T) {
	err := apperror.BadRequest("Validation failed").WithDetails(map[string]string{"email": "required"})
	_, body := render(t, Responder{}, err)
	assert.Equal(t, map[string]any{"email": "required"}, body.Error.Details)
}
