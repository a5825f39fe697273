// Package apperr provides shared error types that map to both CLI exit codes
// and HTTP status codes, enabling consistent error handling across the CLI and API.
package apperr

import (
	"fmt"
	"net/http"
)

// Kind represents the category of an error, which determines both the
// CLI exit code and HTTP status code.
type Kind int

const (
	// KindValidation represents input that violates a request schema.
	// HTTP status: 422 Unprocessable Entity
	KindValidation Kind = iota

	// KindBadRequest represents semantically invalid input, such as an
	// illegal status transition. HTTP status: 400 Bad Request
	KindBadRequest

	// KindUnauthorized represents a missing, invalid, or expired token.
	// HTTP status: 401 Unauthorized
	KindUnauthorized

	// KindForbidden represents an authenticated principal whose role or
	// ownership denies the operation. HTTP status: 403 Forbidden
	KindForbidden

	// KindNotFound represents a missing resource.
	// HTTP status: 404 Not Found
	KindNotFound

	// KindConflict represents a uniqueness or workflow exclusion, such as
	// duplicate feedback or a pending escalation. HTTP status: 409 Conflict
	KindConflict

	// KindRateLimited represents an exhausted rate-limit bucket.
	// HTTP status: 429 Too Many Requests
	KindRateLimited

	// KindInternal represents an unexpected error.
	// HTTP status: 500 Internal Server Error
	KindInternal
)

// String returns a human-readable name for the error kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindBadRequest:
		return "BadRequest"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindRateLimited:
		return "RateLimited"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error represents a structured error with kind, message, and cause.
// It implements the standard error interface and provides methods for mapping
// to CLI exit codes and HTTP status codes.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Fields  []FieldError
}

// FieldError describes a single schema violation for 422 responses.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity // 422
	case KindBadRequest:
		return http.StatusBadRequest // 400
	case KindUnauthorized:
		return http.StatusUnauthorized // 401
	case KindForbidden:
		return http.StatusForbidden // 403
	case KindNotFound:
		return http.StatusNotFound // 404
	case KindConflict:
		return http.StatusConflict // 409
	case KindRateLimited:
		return http.StatusTooManyRequests // 429
	default:
		return http.StatusInternalServerError // 500
	}
}

// CLIExitCode returns the appropriate CLI exit code for this error.
func (e *Error) CLIExitCode() int {
	switch e.Kind {
	case KindValidation, KindBadRequest:
		return 2
	case KindNotFound:
		return 3
	case KindForbidden, KindUnauthorized:
		return 4
	case KindInternal:
		return 5
	case KindConflict:
		return 6
	default:
		return 1
	}
}

// WithFields attaches field-level violations and returns the error for chaining.
func (e *Error) WithFields(fields ...FieldError) *Error {
	e.Fields = append(e.Fields, fields...)
	return e
}

// Constructor functions

// Validation creates an error for schema violations.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// BadRequest creates an error for semantically invalid input.
func BadRequest(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized creates an error for missing or invalid credentials.
func Unauthorized(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Forbidden creates an error for role or ownership denials.
func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates an error for missing resources.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates an error for uniqueness or workflow exclusions.
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// RateLimited creates an error for exhausted rate-limit buckets.
func RateLimited(format string, args ...interface{}) *Error {
	return &Error{Kind: KindRateLimited, Message: fmt.Sprintf(format, args...)}
}

// Internal creates an error for unexpected failures.
func Internal(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a specific kind and message.
func Wrap(err error, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WrapInternal wraps an error as an internal error.
func WrapInternal(err error, format string, args ...interface{}) *Error {
	return Wrap(err, KindInternal, format, args...)
}

// Helper functions for extracting error information

// GetKind extracts the Kind from an error, returning KindInternal if the
// error is not an *Error.
func GetKind(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindInternal
}

// GetHTTPStatus extracts the HTTP status code from an error.
func GetHTTPStatus(err error) int {
	if e, ok := err.(*Error); ok {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// GetCLIExitCode extracts the CLI exit code from an error.
func GetCLIExitCode(err error) int {
	if e, ok := err.(*Error); ok {
		return e.CLIExitCode()
	}
	return 1
}

// Is returns true if the error is of the specified kind.
func Is(err error, kind Kind) bool {
	if e, ok := err.(*Error); ok {
		return e.Kind == kind
	}
	return false
}
