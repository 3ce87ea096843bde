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

// Is matches any *AppError carrying the same code, so callers can write
// errors.Is(err, apperror.ErrCapExceeded(...)) without comparing pointers.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
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

func ErrCapExceeded(cap string) *AppError {
	return New("WAL_001", fmt.Sprintf("Deposit would exceed the wallet limit of %s USDT", cap), http.StatusUnprocessableEntity)
}

func ErrBelowMinimum(min string) *AppError {
	return New("WAL_002", fmt.Sprintf("Minimum withdrawal amount is %s USDT", min), http.StatusBadRequest)
}

func ErrAboveMaximum(max string) *AppError {
	return New("WAL_003", fmt.Sprintf("Maximum withdrawal amount is %s USDT", max), http.StatusBadRequest)
}

func ErrInvalidAddress() *AppError {
	return New("WAL_004", "Please enter a valid wallet address", http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New("WAL_005", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrWalletNotFound() *AppError {
	return New("WAL_006", "Wallet not found", http.StatusNotFound)
}

func ErrWithdrawalNotPending() *AppError {
	return New("WAL_007", "Withdrawal request is not pending", http.StatusConflict)
}

func ErrInvalidCurrency() *AppError {
	return New("WAL_008", "Invalid currency", http.StatusBadRequest)
}

func ErrInvalidStatus() *AppError {
	return New("WAL_009", "Invalid withdrawal status", http.StatusBadRequest)
}

func ErrSelfTransfer() *AppError {
	return New("WAL_010", "Cannot transfer funds to your own wallet", http.StatusBadRequest)
}

func ErrDuplicateTransaction() *AppError {
	return New("WAL_011", "Duplicate transaction", http.StatusConflict)
}

func ErrInvalidAmount() *AppError {
	return New("WAL_012", "Invalid amount", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("WAL_013", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInvalidSettings(message string) *AppError {
	return New("WAL_014", message, http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrMissingToken() *AppError {
	return New("AUTH_001", "Missing or malformed authorization header", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_005", "Insufficient permissions", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

func ErrServiceNotReady() *AppError {
	return New("SYS_003", "Wallet service is not ready", http.StatusServiceUnavailable)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a REQ_001 request validation error.
func Validation(message string) *AppError {
	return New("REQ_001", message, http.StatusBadRequest)
}
