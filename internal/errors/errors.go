package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Authentication & Authorization
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"

	// Validation
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// Resource
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Connection lifecycle
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Transient: store or registry unreachable, caller may retry
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// AuthFailureReason distinguishes why a credential was rejected. It is kept
// for logging only; callers always see ErrCodeUnauthenticated.
type AuthFailureReason string

const (
	AuthReasonMissing          AuthFailureReason = "missing"
	AuthReasonMalformed        AuthFailureReason = "malformed"
	AuthReasonExpired          AuthFailureReason = "expired"
	AuthReasonSignatureInvalid AuthFailureReason = "signature_invalid"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// Retryable reports whether the client may retry the same operation.
func (e *AppError) Retryable() bool {
	return e.Code == ErrCodeUnavailable
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

// Unauthenticated collapses every credential failure into one client-facing
// error. The reason is only exposed through AuthReason for logging.
func Unauthenticated(reason AuthFailureReason, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeUnauthenticated,
		Message: "Authentication required",
		Details: reason,
		cause:   cause,
	}
}

func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidState(state string) *AppError {
	return New(ErrCodeInvalidState, fmt.Sprintf("Operation not allowed while connection is %s", state))
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func Unavailable(cause error) *AppError {
	return Wrap(ErrCodeUnavailable, "Service temporarily unavailable, retry later", cause)
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// AuthReason extracts the credential failure reason from an Unauthenticated error.
func AuthReason(err error) AuthFailureReason {
	appErr, ok := AsAppError(err)
	if !ok || appErr.Code != ErrCodeUnauthenticated {
		return ""
	}
	reason, _ := appErr.Details.(AuthFailureReason)
	return reason
}
