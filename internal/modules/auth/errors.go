package auth

import "sessionauth/internal/pkg/apperror"

// User-facing failures of the session lifecycle. Each is returned as-is, or wrapped with a cause
// via withCause, so callers can match them with errors.Is.
var (
	ErrEmailTaken    = apperror.Conflict("Email already in use")
	ErrUsernameTaken = apperror.Conflict("Username already in use")
	ErrPhoneTaken    = apperror.Conflict("Phone number already in use")
	ErrIdentityTaken = apperror.Conflict("Email, username or phone number already in use")

	ErrInvalidCredentials = apperror.Unauthorized("Invalid credentials")
	ErrPasswordTooLong    = apperror.BadRequest("Password must be at most 72 bytes")

	ErrRefreshTokenRequired = apperror.BadRequest("Refresh token is required")
	ErrInvalidRefreshToken  = apperror.Unauthorized("Invalid or expired refresh token")
	ErrMalformedRefresh     = apperror.Unauthorized("Malformed refresh token")
	ErrSessionGone          = apperror.NotFound("Session not found or already logged out")
	ErrSessionRevoked       = apperror.Unauthorized("Session not found or refresh token revoked")
	ErrSessionExists        = apperror.Conflict("Session already exists")
	ErrUserNotFound         = apperror.NotFound("User not found")
)

func withCause(e *apperror.Error, cause error) *apperror.Error {
	out := *e
	out.Err = cause
	return &out
}
