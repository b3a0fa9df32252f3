package service

import (
	"errors"
	"fmt"
)

// ServiceError represents a business logic error with a code
type ServiceError struct {
	Err     error
	Message string
	Code    string
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeCardNotFound      = "card_not_found"
	ErrCodeLedgerUnavailable = "ledger_unavailable"
	ErrCodeInvalidAddress    = "invalid_address"
	ErrCodeInvalidAmount     = "invalid_amount"
	ErrCodeInsufficientFunds = "insufficient_funds"
	ErrCodeLimitExceeded     = "limit_exceeded"
	ErrCodeCardInactive      = "card_inactive"
	ErrCodeNotOwner          = "not_owner"
	ErrCodeWrongNetwork      = "wrong_network"
	ErrCodeNotConnected      = "not_connected"
	ErrCodePassSuperseded    = "pass_superseded"
	ErrCodeInternalError     = "internal_error"
)

// IsValidationCode reports whether code describes a request rejected before
// reaching the ledger
func IsValidationCode(code string) bool {
	switch code {
	case ErrCodeInvalidAddress, ErrCodeInvalidAmount, ErrCodeInsufficientFunds,
		ErrCodeLimitExceeded, ErrCodeCardInactive, ErrCodeNotOwner:
		return true
	default:
		return false
	}
}

// ErrorCode extracts the service error code from err, or "" when err is not a ServiceError
func ErrorCode(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return ""
}

func ledgerUnavailable(message string, err error) *ServiceError {
	return &ServiceError{
		Code:    ErrCodeLedgerUnavailable,
		Message: message,
		Err:     err,
	}
}
