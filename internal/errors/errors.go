// Package errors defines the service error taxonomy shared by handlers,
// services and middleware.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode is a stable, machine-readable error identifier.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "VALIDATION_ERROR"
	CodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	CodeInvalidToken      ErrorCode = "INVALID_TOKEN"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeConflict          ErrorCode = "CONFLICT"
	CodeUpstream          ErrorCode = "UPSTREAM_ERROR"
	CodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// ServiceError is an error with an HTTP mapping and user-facing message.
// Err holds the underlying cause, which is logged but never rendered.
type ServiceError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a ServiceError with the same code.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails returns a copy of e with one more detail entry.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// New creates a ServiceError.
func New(code ErrorCode, message string, status int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

// Wrap creates a ServiceError around a cause.
func Wrap(code ErrorCode, message string, status int, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// =============================================================================
// Constructors
// =============================================================================

// Validation reports invalid caller input.
func Validation(message string) *ServiceError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// FieldErrors reports per-field validation failures.
func FieldErrors(message string, fields map[string]string) *ServiceError {
	e := Validation(message)
	if len(fields) > 0 {
		e.Details = map[string]interface{}{"fields": fields}
	}
	return e
}

// Unauthorized reports a missing or unusable identity.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "Authentication required"
	}
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

// InvalidToken reports an access token that failed verification.
func InvalidToken(err error) *ServiceError {
	return Wrap(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized, err)
}

// Forbidden reports an identity lacking the needed role.
func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "Access denied"
	}
	return New(CodeForbidden, message, http.StatusForbidden)
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *ServiceError {
	e := New(CodeNotFound, resource+" not found", http.StatusNotFound)
	if id != "" {
		e.Details = map[string]interface{}{"id": id}
	}
	return e
}

// Conflict reports a write colliding with existing state.
func Conflict(message string) *ServiceError {
	return New(CodeConflict, message, http.StatusConflict)
}

// Upstream reports a failed remote operation. message is what the user sees.
func Upstream(message string, err error) *ServiceError {
	return Wrap(CodeUpstream, message, http.StatusBadGateway, err)
}

// RateLimitExceeded reports a throttled caller.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return &ServiceError{
		Code:       CodeRateLimitExceeded,
		Message:    "Rate limit exceeded",
		HTTPStatus: http.StatusTooManyRequests,
		Details: map[string]interface{}{
			"limit":  limit,
			"window": window,
		},
	}
}

// Internal reports an unexpected failure.
func Internal(message string, err error) *ServiceError {
	return Wrap(CodeInternal, message, http.StatusInternalServerError, err)
}

// =============================================================================
// Inspection
// =============================================================================

// GetServiceError returns the first ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// HasCode reports whether err carries a ServiceError with code.
func HasCode(err error, code ErrorCode) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}

// Is and As re-export the standard helpers so callers need one import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target interface{}) bool { return stderrors.As(err, target) }
