package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error codes
const (
	// Auth errors
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInvalidToken = "INVALID_TOKEN"

	// Input errors
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeBadRequest       = "BAD_REQUEST"

	// Queue admission
	CodeCapacityRejected = "CAPACITY_REJECTED"
	CodeRateLimited      = "RATE_LIMITED"

	// Dispatch errors
	CodeDispatchTimeout   = "DISPATCH_TIMEOUT"
	CodeDispatchFailed    = "DISPATCH_FAILED"
	CodeDispatchExhausted = "DISPATCH_EXHAUSTED"

	// Session errors
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeSessionClosed   = "SESSION_CLOSED"

	// Internal errors
	CodeInternalError = "INTERNAL_ERROR"
	CodeConfigError   = "CONFIG_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func New(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func Wrap(err error, code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

// Auth errors
func Unauthorized(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return &AppError{Code: CodeUnauthorized, Message: message, Status: http.StatusUnauthorized}
}

func InvalidToken(message string) *AppError {
	return &AppError{Code: CodeInvalidToken, Message: message, Status: http.StatusUnauthorized}
}

// Validation marks malformed input rejected before scoring. Never retried.
func Validation(field, reason string) *AppError {
	return &AppError{
		Code:    CodeValidationFailed,
		Message: fmt.Sprintf("invalid %s: %s", field, reason),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"field": field},
	}
}

func BadRequest(message string) *AppError {
	return &AppError{Code: CodeBadRequest, Message: message, Status: http.StatusBadRequest}
}

// CapacityRejection covers duplicate, rate-limited and queue-full admissions.
// The queue reports these as values; this form exists for transports that
// need an error.
func CapacityRejection(reason string) *AppError {
	return &AppError{
		Code:    CodeCapacityRejected,
		Message: fmt.Sprintf("comment not admitted: %s", reason),
		Status:  http.StatusTooManyRequests,
		Details: map[string]any{"reason": reason},
	}
}

func RateLimited(scope string) *AppError {
	return &AppError{
		Code:    CodeRateLimited,
		Message: "too many requests",
		Status:  http.StatusTooManyRequests,
		Details: map[string]any{"scope": scope},
	}
}

// Dispatch errors
func DispatchTimeout(tier string, budget time.Duration) *AppError {
	return &AppError{
		Code:    CodeDispatchTimeout,
		Message: fmt.Sprintf("%s exceeded budget %s", tier, budget),
		Status:  http.StatusGatewayTimeout,
		Details: map[string]any{"tier": tier, "budget_ms": budget.Milliseconds()},
	}
}

func DispatchFailure(tier string, err error) *AppError {
	return &AppError{
		Code:    CodeDispatchFailed,
		Message: fmt.Sprintf("%s response pipeline failed", tier),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"tier": tier},
		Err:     err,
	}
}

// Exhausted is terminal: every tier in the chain failed or timed out.
func Exhausted(entryID string, attempts int, last error) *AppError {
	return &AppError{
		Code:    CodeDispatchExhausted,
		Message: fmt.Sprintf("all tiers exhausted for %s after %d attempts", entryID, attempts),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"entry_id": entryID, "attempts": attempts},
		Err:     last,
	}
}

// Session errors
func SessionNotFound(id string) *AppError {
	return &AppError{
		Code:    CodeSessionNotFound,
		Message: fmt.Sprintf("session %s not found", id),
		Status:  http.StatusNotFound,
	}
}

func SessionClosed(id string) *AppError {
	return &AppError{
		Code:    CodeSessionClosed,
		Message: fmt.Sprintf("session %s is closed", id),
		Status:  http.StatusConflict,
	}
}

// Internal errors
func Internal(message string) *AppError {
	if message == "" {
		message = "internal server error"
	}
	return &AppError{Code: CodeInternalError, Message: message, Status: http.StatusInternalServerError}
}

func InternalWithError(err error) *AppError {
	return &AppError{
		Code:    CodeInternalError,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func ConfigError(message string) *AppError {
	return &AppError{Code: CodeConfigError, Message: message, Status: http.StatusInternalServerError}
}

// Helper functions
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalWithError(err)
}

// IsCode reports whether err carries an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
