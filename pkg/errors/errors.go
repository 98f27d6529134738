package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode represents an error code
type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeConflict      ErrorCode = "CONFLICT"
)

// AppError represents an application error
type AppError struct {
	Code    ErrorCode
	Message string
	// Fields holds per-field validation messages keyed by JSON field name.
	Fields map[string]string
	Err    error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("%s: %s [%s]", e.Code, e.Message, strings.Join(keys, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NotFound creates a NOT_FOUND error
func NotFound(message string) *AppError { return New(ErrCodeNotFound, message) }

// Unauthorized creates an UNAUTHORIZED error
func Unauthorized(message string) *AppError { return New(ErrCodeUnauthorized, message) }

// Forbidden creates a FORBIDDEN error
func Forbidden(message string) *AppError { return New(ErrCodeForbidden, message) }

// BadRequest creates a BAD_REQUEST error
func BadRequest(message string) *AppError { return New(ErrCodeBadRequest, message) }

// Conflict creates a CONFLICT error
func Conflict(message string) *AppError { return New(ErrCodeConflict, message) }

// Internal wraps an unexpected failure
func Internal(message string, err error) *AppError {
	return Wrap(ErrCodeInternalError, message, err)
}

// Validation creates a VALIDATION_ERROR carrying per-field messages
func Validation(message string, fields map[string]string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Fields:  fields,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalError
}

func is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is NotFound
func IsNotFound(err error) bool {
	return is(err, ErrCodeNotFound)
}

// IsUnauthorized checks if error is Unauthorized
func IsUnauthorized(err error) bool {
	return is(err, ErrCodeUnauthorized)
}

// IsForbidden checks if error is Forbidden
func IsForbidden(err error) bool {
	return is(err, ErrCodeForbidden)
}

// IsValidation checks if error is a validation failure
func IsValidation(err error) bool {
	return is(err, ErrCodeValidation)
}

// IsConflict checks if error is a Conflict
func IsConflict(err error) bool {
	return is(err, ErrCodeConflict)
}
