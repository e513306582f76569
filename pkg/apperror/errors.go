package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
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

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Wallet Ledger (WAL) ----

func ErrInvalidAmount() *AppError {
	return New("WAL_001", "Amount must be positive", http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New("WAL_002", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrAccountLocked() *AppError {
	return New("WAL_003", "Wallet is locked", http.StatusForbidden)
}

func ErrLimitExceeded() *AppError {
	return New("WAL_004", "Spending limit exceeded for the current period", http.StatusUnprocessableEntity)
}

// ErrWalletBusy signals a bounded lock wait expired; the caller may retry.
func ErrWalletBusy(err error) *AppError {
	return Wrap("WAL_005", "Wallet is busy, retry shortly", http.StatusServiceUnavailable, err)
}

func ErrUnknownBucket(name string) *AppError {
	return New("WAL_006", fmt.Sprintf("Unknown sub-balance %q", name), http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("WAL_007", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- OTP Challenges (OTP) ----

func ErrChallengeNotFound() *AppError {
	return New("OTP_001", "OTP challenge not found or expired", http.StatusNotFound)
}

func ErrChallengeExpired() *AppError {
	return New("OTP_002", "OTP challenge has expired", http.StatusGone)
}

func ErrChallengeExhausted() *AppError {
	return New("OTP_003", "Maximum verification attempts exceeded", http.StatusForbidden)
}

func ErrChallengeMismatch(remaining int) *AppError {
	return New("OTP_004", fmt.Sprintf("Invalid code. %d attempts remaining", remaining), http.StatusUnauthorized)
}

// ---- Rate Limiting & Anomaly (RATE / SEC) ----

func ErrRateLimited(retryAfterSeconds int64) *AppError {
	return New("RATE_001", fmt.Sprintf("Rate limit exceeded, retry after %d seconds", retryAfterSeconds), http.StatusTooManyRequests)
}

func ErrSuspiciousActivity() *AppError {
	return New("SEC_001", "Operation rejected due to suspicious activity", http.StatusTooManyRequests)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}
