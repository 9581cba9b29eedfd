package shared

import "fmt"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same error code.
// It lets errors.Is match a formatted error against the sentinel of its kind.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a domain error of the given kind with a formatted message
func Errorf(kind *DomainError, format string, args ...any) *DomainError {
	return NewDomainError(kind.Code, fmt.Sprintf(format, args...))
}

// Error codes
const (
	CodeNotFound                   = "NOT_FOUND"
	CodeAlreadyExists              = "ALREADY_EXISTS"
	CodeInvalidInput               = "INVALID_INPUT"
	CodeConcurrencyConflict        = "CONCURRENCY_CONFLICT"
	CodeInvalidState               = "INVALID_STATE"
	CodeInvalidArgument            = "INVALID_ARGUMENT"
	CodeInsufficientStock          = "INSUFFICIENT_STOCK"
	CodeInsufficientAvailableStock = "INSUFFICIENT_AVAILABLE_STOCK"
	CodeOverRelease                = "OVER_RELEASE"
	CodeExceedsRemaining           = "EXCEEDS_REMAINING"
	CodeInvalidSequence            = "INVALID_SEQUENCE"
	CodeInvalidStateTransition     = "INVALID_STATE_TRANSITION"
	CodeAlreadyFinalized           = "ALREADY_FINALIZED"
	CodeIncompleteCount            = "INCOMPLETE_COUNT"
	CodeEmptyAdjustment            = "EMPTY_ADJUSTMENT"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists       = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
)

// Ledger and workflow error kinds
var (
	ErrInvalidArgument            = NewDomainError(CodeInvalidArgument, "Invalid argument")
	ErrInsufficientStock          = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrInsufficientAvailableStock = NewDomainError(CodeInsufficientAvailableStock, "Insufficient available stock to reserve")
	ErrOverRelease                = NewDomainError(CodeOverRelease, "Release exceeds reserved quantity")
	ErrExceedsRemaining           = NewDomainError(CodeExceedsRemaining, "Quantity exceeds remaining quantity")
	ErrInvalidSequence            = NewDomainError(CodeInvalidSequence, "Invalid sequence number")
	ErrInvalidStateTransition     = NewDomainError(CodeInvalidStateTransition, "State transition not allowed")
	ErrAlreadyFinalized           = NewDomainError(CodeAlreadyFinalized, "Already finalized")
	ErrIncompleteCount            = NewDomainError(CodeIncompleteCount, "Not all items have been counted")
	ErrEmptyAdjustment            = NewDomainError(CodeEmptyAdjustment, "Adjustment has no items")
)
