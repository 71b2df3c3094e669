// Package apperror defines the error vocabulary shared by every layer.
//
// Sentinels identify the KIND of failure so callers can branch with
// errors.Is; *AppError carries the human-readable message (and, for
// validation failures, the offending field). HTTP handlers map kinds to
// status codes, and the API client maps status codes back to the same
// sentinels, so errors.Is(err, apperror.ErrForbidden) works on both sides
// of the wire.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrOffline      = errors.New("offline")
	ErrTimeout      = errors.New("timeout")
)

// Codes surfaced to clients for the two errors that drive navigation:
// AUTH_ERROR sends the user back to sign-in, ACCESS_DENIED back to the dashboard.
const (
	CodeAuthError    = "AUTH_ERROR"
	CodeAccessDenied = "ACCESS_DENIED"
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// AccessDenied is the Forbidden flavour used when an authenticated user asks
// for a trip they are not a member of.
func AccessDenied() *AppError {
	return Forbidden(CodeAccessDenied)
}

// Unauthorized means the session is missing or expired.
// HTTP handlers map this to 401.
func Unauthorized(message string) *AppError {
	if message == "" {
		message = CodeAuthError
	}
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Offline is returned by client-side fetchers that have no network and no cache.
func Offline(message string) *AppError {
	return &AppError{
		Err:     ErrOffline,
		Message: message,
	}
}

// Timeout is returned when a backend call exceeds its deadline.
func Timeout(operation string) *AppError {
	return &AppError{
		Err:     ErrTimeout,
		Message: fmt.Sprintf("%s timed out", operation),
	}
}

// FromStatus rebuilds a typed error from an HTTP status code and message.
// Used by the API client so remote failures keep their kind.
func FromStatus(status int, message string) error {
	var kind error
	switch status {
	case 400, 422:
		kind = ErrValidation
	case 401:
		kind = ErrUnauthorized
	case 403:
		kind = ErrForbidden
	case 404:
		kind = ErrNotFound
	case 409:
		kind = ErrConflict
	case 408, 504:
		kind = ErrTimeout
	default:
		return fmt.Errorf("server error (status %d): %s", status, message)
	}
	return &AppError{Err: kind, Message: message}
}
