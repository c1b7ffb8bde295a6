// Package errors provides custom error types for the Stonksnote API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
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

// Is matches another AppError by code, so wrapped copies of a sentinel
// still satisfy errors.Is(err, ErrNotEnoughFunds).
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

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrInvalidToken       = &AppError{Code: "INVALID_TOKEN", Message: "Invalid or expired token", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
	ErrPermissionDenied   = &AppError{Code: "PERMISSION_DENIED", Message: "You do not have permission to do this", StatusCode: http.StatusForbidden}
	ErrInvalidAPIKey      = &AppError{Code: "INVALID_API_KEY", Message: "Invalid or missing API key", StatusCode: http.StatusUnauthorized}
	ErrAdminNotConfigured = &AppError{Code: "ADMIN_NOT_CONFIGURED", Message: "Admin endpoints are not configured", StatusCode: http.StatusServiceUnavailable}
)

// General errors.
var (
	ErrInvalidInput       = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound           = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer     = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
	ErrServiceUnavailable = &AppError{Code: "SERVICE_UNAVAILABLE", Message: "The service is temporarily unavailable", StatusCode: http.StatusServiceUnavailable}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Group & permission errors.
var (
	ErrGroupNotFound      = &AppError{Code: "GROUP_NOT_FOUND", Message: "Group not found", StatusCode: http.StatusNotFound}
	ErrDuplicateGroup     = &AppError{Code: "DUPLICATE_GROUP", Message: "A group with this name already exists", StatusCode: http.StatusConflict}
	ErrPermissionNotFound = &AppError{Code: "PERMISSION_NOT_FOUND", Message: "Permission not found", StatusCode: http.StatusNotFound}
)

// Catalog errors.
var (
	ErrBrokerNotFound   = &AppError{Code: "BROKER_NOT_FOUND", Message: "Broker not found", StatusCode: http.StatusNotFound}
	ErrEquityNotFound   = &AppError{Code: "EQUITY_NOT_FOUND", Message: "Equity not found", StatusCode: http.StatusNotFound}
	ErrTaxonomyNotFound = &AppError{Code: "TAXONOMY_NOT_FOUND", Message: "Taxonomy not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEquity  = &AppError{Code: "DUPLICATE_EQUITY", Message: "This equity already exists on the exchange", StatusCode: http.StatusConflict}
)

// Trading errors.
var (
	ErrMissingBrokers     = &AppError{Code: "MISSING_BROKERS", Message: "Add a broker before trading", StatusCode: http.StatusUnprocessableEntity}
	ErrNotEnoughFunds     = &AppError{Code: "NOT_ENOUGH_FUNDS", Message: "Not enough funds in the broker wallet", StatusCode: http.StatusUnprocessableEntity}
	ErrInsufficientShares = &AppError{Code: "INSUFFICIENT_SHARES", Message: "Insufficient shares for this sale", StatusCode: http.StatusUnprocessableEntity}
	ErrStashNotFound      = &AppError{Code: "STASH_NOT_FOUND", Message: "Holding not found", StatusCode: http.StatusNotFound}
	ErrTradeImmutable     = &AppError{Code: "TRADE_IMMUTABLE", Message: "Trades cannot be changed once recorded", StatusCode: http.StatusConflict}
)
