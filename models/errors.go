package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeUpstream     = "UPSTREAM_FAILED"
	ErrCodeTimeout      = "RELAY_TIMEOUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RelayError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
//
// One RelayError is the whole outcome of a failed invocation: the relay
// has a single failure boundary, so partial results never escape it.
type RelayError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *RelayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RelayError) Unwrap() error {
	return e.Err
}

// NewRelayError creates a new RelayError.
func NewRelayError(code, message string, err error) *RelayError {
	return &RelayError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *RelayError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}
