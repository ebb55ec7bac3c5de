// Package apperror provides structured error handling for the transaction layer
// and the HTTP surface built on top of it.
// Every failure that crosses a package boundary is an AppError with a stable code.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"

	// Transaction lifecycle errors
	CodeInvalidState       = "INVALID_STATE"
	CodeMissingTransaction = "MISSING_TRANSACTION"
	CodeTransactionFailure = "TRANSACTION_FAILURE"
	CodeConfiguration      = "CONFIGURATION_ERROR"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"
)

// AppError is the standard error type for the platform.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (transaction id, property name, ...)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Transaction lifecycle ---

// NewInvalidState is returned when an operation is not legal in the current
// transaction state: a closed transaction, or commit/rollback on a read-only one.
func NewInvalidState(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidState,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewMissingTransaction is returned when persistence is used outside any
// transaction boundary.
func NewMissingTransaction() *AppError {
	return &AppError{
		Code:       CodeMissingTransaction,
		Message:    "missing transaction; session used outside transaction boundaries",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewTransactionFailure wraps a failure raised while opening, beginning,
// committing, rolling back or closing a transaction, or raised by a unit of work.
func NewTransactionFailure(op string, err error) *AppError {
	return &AppError{
		Code:       CodeTransactionFailure,
		Message:    fmt.Sprintf("transaction %s failed", op),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"operation": op},
		Err:        err,
	}
}

// NewConfiguration reports an adapter used before configuration or a malformed
// configuration property.
func NewConfiguration(message string) *AppError {
	return &AppError{
		Code:       CodeConfiguration,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// --- Request level ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

func hasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsInvalidState checks if error is CodeInvalidState
func IsInvalidState(err error) bool { return hasCode(err, CodeInvalidState) }

// IsMissingTransaction checks if error is CodeMissingTransaction
func IsMissingTransaction(err error) bool { return hasCode(err, CodeMissingTransaction) }

// IsTransactionFailure checks if error is CodeTransactionFailure
func IsTransactionFailure(err error) bool { return hasCode(err, CodeTransactionFailure) }

// IsConfiguration checks if error is CodeConfiguration
func IsConfiguration(err error) bool { return hasCode(err, CodeConfiguration) }

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsValidation checks if error is CodeValidation
func IsValidation(err error) bool { return hasCode(err, CodeValidation) }
