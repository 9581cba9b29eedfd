package dto

import (
	"net/http"

	"github.com/erp/inventory-ledger/internal/domain/shared"
)

// Transport level error codes. Domain failures keep the code of their
// shared.DomainError kind.
const (
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeMissingTenant   = "MISSING_TENANT"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeMissingTenant:   http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	shared.CodeInvalidInput:    http.StatusBadRequest,
	shared.CodeInvalidArgument: http.StatusBadRequest,

	shared.CodeNotFound: http.StatusNotFound,

	// Lost races and replays: the caller may retry after re-reading
	shared.CodeAlreadyExists:       http.StatusConflict,
	shared.CodeConcurrencyConflict: http.StatusConflict,
	shared.CodeInvalidSequence:     http.StatusConflict,
	shared.CodeAlreadyFinalized:    http.StatusConflict,

	// Business rule violations
	shared.CodeInvalidState:               http.StatusUnprocessableEntity,
	shared.CodeInvalidStateTransition:     http.StatusUnprocessableEntity,
	shared.CodeInsufficientStock:          http.StatusUnprocessableEntity,
	shared.CodeInsufficientAvailableStock: http.StatusUnprocessableEntity,
	shared.CodeOverRelease:                http.StatusUnprocessableEntity,
	shared.CodeExceedsRemaining:           http.StatusUnprocessableEntity,
	shared.CodeIncompleteCount:            http.StatusUnprocessableEntity,
	shared.CodeEmptyAdjustment:            http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
