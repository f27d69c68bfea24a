package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures so calling code can pick a business-level
// fallback without inspecting transport internals.
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents an API error with type information. Attempts is set on
// terminal errors surfaced after the retry budget is exhausted and counts
// every try made, the first included.
type Error struct {
	Type     ErrorType
	Message  string
	Code     int
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("weibo %s error (code %d, %d attempts): %s", e.Type, e.Code, e.Attempts, e.Message)
	}
	return fmt.Sprintf("weibo %s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given type.
func New(errorType ErrorType, code int, message string) *Error {
	return &Error{Type: errorType, Code: code, Message: message}
}

// Wrap creates an Error of the given type around an underlying cause.
func Wrap(errorType ErrorType, code int, err error, message string) *Error {
	return &Error{Type: errorType, Code: code, Message: message, Err: err}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // network error, no response
		return true
	case 429, 432:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

// TypeOf returns the classification of err, or ErrorTypeUnknown when err is
// not an *Error.
func TypeOf(err error) ErrorType {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Type
	}
	return ErrorTypeUnknown
}

// IsRateLimit reports whether err is a rate-limit classification.
func IsRateLimit(err error) bool {
	return TypeOf(err) == ErrorTypeRateLimit
}

// IsNotFound reports whether err is a not-found classification.
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}
