package dto

import "net/http"

// API error codes. Format: ERR_<CATEGORY>_<DESCRIPTION>.
const (
	// ErrCodeInternal is used for unexpected server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeValidation is used when request data fails validation
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeUnauthorized is used when the org context is missing or invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"

	// ErrCodeNotFound is used when a resource does not exist
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when creating a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"

	// ErrCodeInvalidState is used when an operation is invalid for the
	// current state of the aggregate
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeAlreadyReversed is used when reversing a reversed payment
	ErrCodeAlreadyReversed = "ERR_ALREADY_REVERSED"
	// ErrCodePeriodLocked is used when a booking touches a locked period
	ErrCodePeriodLocked = "ERR_PERIOD_LOCKED"
	// ErrCodeDeadlineExceeded is used when a statutory deadline has passed
	ErrCodeDeadlineExceeded = "ERR_DEADLINE_EXCEEDED"

	// ErrCodePayloadTooLarge is used when an upload exceeds the body limit
	ErrCodePayloadTooLarge = "ERR_PAYLOAD_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps API error codes to HTTP status codes.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeUnauthorized: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeInvalidState:     http.StatusUnprocessableEntity,
	ErrCodeAlreadyReversed:  http.StatusConflict,
	ErrCodePeriodLocked:     http.StatusConflict,
	ErrCodeDeadlineExceeded: http.StatusUnprocessableEntity,

	ErrCodePayloadTooLarge: http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status for an API error code, 500 when
// the code is unknown.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes.
var DomainErrorCodeMapping = map[string]string{
	"VALIDATION":           ErrCodeValidation,
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"INVALID_STATE":        ErrCodeInvalidState,
	"ALREADY_REVERSED":     ErrCodeAlreadyReversed,
	"PERIOD_LOCKED":        ErrCodePeriodLocked,
	"DEADLINE_EXCEEDED":    ErrCodeDeadlineExceeded,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Unknown codes pass through unchanged.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
