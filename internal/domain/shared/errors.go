package shared

import (
	"errors"
	"fmt"
)

// Error codes shared by every bounded context.
const (
	CodeIllegalParam     = "ILLEGAL_PARAM"
	CodeConflict         = "CONFLICT"
	CodeNotFound         = "NOT_FOUND"
	CodeGatewayFailure   = "GATEWAY_FAILURE"
	CodeCurrencyMismatch = "CURRENCY_MISMATCH"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches any DomainError carrying the same code
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors, usable as errors.Is targets
var (
	ErrIllegalParam     = NewDomainError(CodeIllegalParam, "Illegal parameter")
	ErrConflict         = NewDomainError(CodeConflict, "State conflict")
	ErrNotFound         = NewDomainError(CodeNotFound, "Resource not found")
	ErrGatewayFailure   = NewDomainError(CodeGatewayFailure, "Payment gateway failure")
	ErrCurrencyMismatch = NewDomainError(CodeCurrencyMismatch, "Currency mismatch")
)

// NewIllegalParamError reports malformed caller input
func NewIllegalParamError(format string, args ...any) *DomainError {
	return NewDomainError(CodeIllegalParam, fmt.Sprintf(format, args...))
}

// NewConflictError reports stale data or state that moved on underneath the caller
func NewConflictError(format string, args ...any) *DomainError {
	return NewDomainError(CodeConflict, fmt.Sprintf(format, args...))
}

// NewNotFoundError reports a missing resource
func NewNotFoundError(format string, args ...any) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf(format, args...))
}

// NewGatewayError wraps a transient payment gateway failure
func NewGatewayError(cause error, format string, args ...any) *DomainError {
	return &DomainError{
		Code:    CodeGatewayFailure,
		Message: fmt.Sprintf(format, args...),
		cause:   cause,
	}
}

// IsConflict reports whether err is a CONFLICT domain error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFound reports whether err is a NOT_FOUND domain error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
