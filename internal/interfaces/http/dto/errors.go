package dto

import "net/http"

// Routing error codes. These are the codes clients see; they match the
// domain codes one to one.
const (
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeInvalidTarget        = "INVALID_TARGET"
	ErrCodeParentNotForwardable = "PARENT_NOT_FORWARDABLE"
	ErrCodeConflictRetry        = "CONFLICT_RETRY"
	ErrCodeValidation           = "VALIDATION_ERROR"
)

// Transport error codes raised by the HTTP layer itself
const (
	ErrCodeInternal        = "ERR_INTERNAL"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeUnauthorized    = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired    = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid    = "ERR_TOKEN_INVALID"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
	ErrCodeUnavailable     = "ERR_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeNotFound:             http.StatusNotFound,
	ErrCodeForbidden:            http.StatusForbidden,
	ErrCodeInvalidTransition:    http.StatusUnprocessableEntity,
	ErrCodeInvalidTarget:        http.StatusUnprocessableEntity,
	ErrCodeParentNotForwardable: http.StatusUnprocessableEntity,
	ErrCodeConflictRetry:        http.StatusConflict,
	ErrCodeValidation:           http.StatusBadRequest,

	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeUnauthorized:    http.StatusUnauthorized,
	ErrCodeTokenExpired:    http.StatusUnauthorized,
	ErrCodeTokenInvalid:    http.StatusUnauthorized,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeUnavailable:     http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// SharedErrorCodeMapping folds the generic codes of the shared domain package
// into the routing taxonomy. A bare CONCURRENCY_CONFLICT only escapes the
// service when the conflict could not be re-evaluated, which clients should
// treat as a retry.
var SharedErrorCodeMapping = map[string]string{
	"INVALID_INPUT":        ErrCodeValidation,
	"INVALID_STATE":        ErrCodeInvalidTransition,
	"CONCURRENCY_CONFLICT": ErrCodeConflictRetry,
	"ALREADY_EXISTS":       ErrCodeConflictRetry,
	"INTERNAL_ERROR":       ErrCodeInternal,
}

// NormalizeErrorCode converts a shared error code to its routing equivalent.
// Routing and transport codes are returned as-is.
func NormalizeErrorCode(code string) string {
	if mapped, ok := SharedErrorCodeMapping[code]; ok {
		return mapped
	}
	return code
}
