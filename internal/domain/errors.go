package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidCPVCode       = NewDomainError(ErrCodeValidation, "invalid cpv code")
	ErrTooManyCPVCodes      = NewDomainError(ErrCodeValidation, "too many cpv codes selected")
	ErrTooManyResolveCodes  = NewDomainError(ErrCodeValidation, "too many codes requested")
	ErrInvalidDataset       = NewDomainError(ErrCodeValidation, "invalid cpv dataset")
)

// Not found errors
var (
	ErrProfileNotFound   = NewDomainError(ErrCodeNotFound, "profile not found")
	ErrCPVCodeNotFound   = NewDomainError(ErrCodeNotFound, "cpv code not found")
	ErrSearchLogNotFound = NewDomainError(ErrCodeNotFound, "search log not found")
)

// Authorization errors
var (
	ErrInvalidSession     = NewDomainError(ErrCodeUnauthorized, "invalid or expired session")
	ErrInvalidCredentials = NewDomainError(ErrCodeUnauthorized, "invalid login credentials")
)

// Operation errors
var (
	ErrIdentityUnavailable  = NewDomainError(ErrCodeInternalError, "identity provider unavailable")
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
)
