package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Request errors
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeValidationError ErrorCode = "VALIDATION_ERROR"
	ErrCodeCompileError    ErrorCode = "COMPILE_ERROR"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeRateLimited     ErrorCode = "RATE_LIMITED"
	ErrCodeConflict        ErrorCode = "CONFLICT"

	// Execution errors
	ErrCodeExecutionFailed    ErrorCode = "EXECUTION_FAILED"
	ErrCodeUnsupportedDialect ErrorCode = "UNSUPPORTED_DIALECT"
	ErrCodeGatewayTimeout     ErrorCode = "GATEWAY_TIMEOUT"
	ErrCodeGatewayHTTPError   ErrorCode = "GATEWAY_HTTP_ERROR"
	ErrCodeGatewayUnavailable ErrorCode = "GATEWAY_UNAVAILABLE"
	ErrCodeGatewayBadResponse ErrorCode = "GATEWAY_BAD_RESPONSE"

	// Delivery errors
	ErrCodeDeliveryFailed ErrorCode = "DELIVERY_FAILED"

	// Infrastructure errors
	ErrCodeStorageFailed ErrorCode = "STORAGE_FAILED"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// AppError represents an application error with code and context
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
	Status  int // HTTP status code
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Status:  getHTTPStatus(code),
	}
}

// WrapError wraps an existing error with an error code and message
func WrapError(code ErrorCode, message string, err error) *AppError {
	return NewAppError(code, message, err)
}

// Validation builds a VALIDATION_ERROR.
func Validation(format string, args ...any) *AppError {
	return NewAppError(ErrCodeValidationError, fmt.Sprintf(format, args...), nil)
}

// Compile builds a COMPILE_ERROR.
func Compile(format string, args ...any) *AppError {
	return NewAppError(ErrCodeCompileError, fmt.Sprintf(format, args...), nil)
}

// NotFound builds a NOT_FOUND error for the given resource kind and id.
func NotFound(kind, id string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s '%s' not found", kind, id), nil)
}

// getHTTPStatus maps error codes to HTTP status codes
func getHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeValidationError, ErrCodeCompileError, ErrCodeUnsupportedDialect:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeGatewayTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeGatewayHTTPError, ErrCodeGatewayUnavailable, ErrCodeGatewayBadResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf returns the code of the first AppError in err's chain, or
// INTERNAL_ERROR when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalError
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeNotFound)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return HasCode(err, ErrCodeValidationError)
}

// IsCompileError checks if the error is a compile error
func IsCompileError(err error) bool {
	return HasCode(err, ErrCodeCompileError)
}

// IsGatewayError reports whether err was produced by a gateway call.
func IsGatewayError(err error) bool {
	switch CodeOf(err) {
	case ErrCodeGatewayTimeout, ErrCodeGatewayHTTPError, ErrCodeGatewayUnavailable, ErrCodeGatewayBadResponse:
		return true
	}
	return false
}
