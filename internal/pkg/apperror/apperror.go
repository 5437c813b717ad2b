package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindBadRequest   Kind = "BAD_REQUEST"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindNotFound     Kind = "NOT_FOUND"
	KindConflict     Kind = "CONFLICT"
	KindInternal     Kind = "INTERNAL_ERROR"
)

// Error is the tagged error returned across the service boundary.
// Err carries the underlying cause for logging and is never rendered to clients in production.
type Error struct {
	Kind    Kind
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, and by message when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func (e *Error) WithDetails(details any) *Error {
	out := *e
	out.Details = details
	return &out
}

// Of returns a message-less target for kind-only errors.Is checks.
func Of(kind Kind) *Error { return &Error{Kind: kind} }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func BadRequest(message string) *Error   { return New(KindBadRequest, orDefault(message, "Bad Request")) }
func Unauthorized(message string) *Error { return New(KindUnauthorized, orDefault(message, "Unauthorized")) }
func Forbidden(message string) *Error    { return New(KindForbidden, orDefault(message, "Forbidden")) }
func NotFound(message string) *Error     { return New(KindNotFound, orDefault(message, "Not Found")) }
func Conflict(message string) *Error     { return New(KindConflict, orDefault(message, "Conflict")) }

// Internal wraps an unexpected failure. The message shown to clients is always generic.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal Server Error", Err: err}
}

// As extracts the tagged error, wrapping anything untagged as Internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return As(err).Kind
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
