package errors

import (
	"errors"
	"fmt"
)

// Error types for different domains
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeBusiness   ErrorType = "business"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeExternal   ErrorType = "external"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

func NewBusinessError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeBusiness,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 422,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "RESOURCE_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		Retryable:  false,
		StatusCode: 404,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       "CONFLICT",
		Message:    message,
		Retryable:  false,
		StatusCode: 409,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}

func NewExternalError(service, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       "EXTERNAL_SERVICE_ERROR",
		Message:    fmt.Sprintf("%s service error: %s", service, message),
		Retryable:  true,
		StatusCode: 502,
		Details:    map[string]interface{}{"service": service},
	}
}

// AsAppError extracts an AppError from an error chain, if present.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
