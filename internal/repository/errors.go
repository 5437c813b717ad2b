package repository

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionConflict = errors.New("refresh token already stored")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserConflict    = errors.New("email, username or phone already in use")
)
