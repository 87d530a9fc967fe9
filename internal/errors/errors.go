// Package errors provides the application error taxonomy. Every failure that
// reaches the HTTP boundary is an *AppError carrying a stable code, a message
// and the status it maps to.
package errors

import (
	stderrors "errors"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches AppErrors by code so wrapped copies compare equal to their sentinel.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Internal converts a store or downstream failure into a 500 whose message is
// the downstream message verbatim.
func Internal(err error) *AppError {
	if err == nil {
		return ErrInternalServer
	}
	return &AppError{
		Code:       ErrInternalServer.Code,
		Message:    err.Error(),
		StatusCode: ErrInternalServer.StatusCode,
		Internal:   err,
	}
}

// Authentication errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Unauthorized", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusBadRequest}
	ErrEmailNotConfirmed  = &AppError{Code: "EMAIL_NOT_CONFIRMED", Message: "Please confirm your email before signing in", StatusCode: http.StatusBadRequest}
	ErrDuplicateEmail     = &AppError{Code: "DUPLICATE_EMAIL", Message: "Email is already registered", StatusCode: http.StatusBadRequest}
	ErrInvalidCode        = &AppError{Code: "INVALID_CODE", Message: "Authorization code is invalid or expired", StatusCode: http.StatusBadRequest}
	ErrRateLimited        = &AppError{Code: "RATE_LIMITED", Message: "Too many attempts, please try again later", StatusCode: http.StatusTooManyRequests}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "Internal server error", StatusCode: http.StatusInternalServerError}
)

// Budget errors.
var (
	ErrBudgetNotFound = &AppError{Code: "BUDGET_NOT_FOUND", Message: "Budget not found", StatusCode: http.StatusNotFound}
)

// Transaction errors.
var (
	ErrTransactionNotFound = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
)

// Category errors.
var (
	ErrCategoryNotFound  = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrDuplicateCategory = &AppError{Code: "DUPLICATE_CATEGORY", Message: "A category with this name already exists", StatusCode: http.StatusConflict}
	ErrCategoryInUse     = &AppError{Code: "CATEGORY_IN_USE", Message: "Category is used by existing transactions", StatusCode: http.StatusConflict}
)
