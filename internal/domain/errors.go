package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Validation errors
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Tenant errors (COMPANY_*)
	ErrorCodeCompanyNotFound    ErrorCode = "COMPANY_NOT_FOUND"
	ErrorCodeCompanyInactive    ErrorCode = "COMPANY_INACTIVE"
	ErrorCodeCrossCompanyDenied ErrorCode = "CROSS_COMPANY_ACCESS_DENIED"

	// Payment lifecycle errors (PAYMENT_*)
	ErrorCodeDuplicateSuccess     ErrorCode = "DUPLICATE_SUCCESS_PAYMENT"
	ErrorCodeInvalidPaymentStatus ErrorCode = "INVALID_PAYMENT_STATUS"
	ErrorCodeInvalidPaymentUpdate ErrorCode = "INVALID_PAYMENT_UPDATE"

	// Access gate outcomes (GATE_*)
	ErrorCodePaymentRequired    ErrorCode = "PAYMENT_REQUIRED"
	ErrorCodePaymentPending     ErrorCode = "PAYMENT_PENDING"
	ErrorCodePaymentFailed      ErrorCode = "PAYMENT_FAILED"
	ErrorCodePaymentCheckFailed ErrorCode = "PAYMENT_CHECK_FAILED"

	// Provider errors (PROVIDER_*)
	ErrorCodeProviderConfig ErrorCode = "PROVIDER_CONFIGURATION_ERROR"
	ErrorCodeProviderError  ErrorCode = "PROVIDER_ERROR"

	// Callback errors
	ErrorCodeCallbackMismatch ErrorCode = "PAYMENT_CALLBACK_MISMATCH"
)

// DomainError represents a structured business-rule failure with a stable
// code and a human message. Transport layers select status codes from Code.
type DomainError struct {
	Err     error
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// NewDomainErrorf creates a new domain error with a formatted message
func NewDomainErrorf(code ErrorCode, format string, args ...interface{}) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// GetErrorCode extracts the error code from an error, returns empty string if
// the error is not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// AsDomainError unwraps err into a DomainError, or nil when err carries none.
func AsDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// IsGateDenial checks if an error is an access-gate denial reflecting ledger
// state (as opposed to a verification failure).
func IsGateDenial(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodePaymentRequired ||
		code == ErrorCodePaymentPending ||
		code == ErrorCodePaymentFailed
}

// ErrDuplicatePending is surfaced by the ledger when the one-PENDING-per-company
// partial unique index rejects an insert. The service treats it as the signal
// to retry the return-existing path.
var ErrDuplicatePending = errors.New("pending payment already exists for company")

// ErrPaymentNotFound is returned by ledger lookups that match no row.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrCompanyNotFound is returned by company lookups that match no row.
var ErrCompanyNotFound = errors.New("company not found")
