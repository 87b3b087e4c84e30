package homeassistant

import (
	"errors"
	"fmt"
	"net/http"
)

// HAError represents a Home Assistant-specific error. Code carries the HTTP
// status code of the response, or 0 when no response was received.
type HAError struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *HAError) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("HA Error %d: %s (details: %v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("HA Error %d: %s", e.Code, e.Message)
}

// Is matches on code and message so that detailed copies of the predefined
// errors still satisfy errors.Is.
func (e *HAError) Is(target error) bool {
	t, ok := target.(*HAError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// Predefined error types
var (
	ErrUnauthorized = &HAError{
		Code:    http.StatusUnauthorized,
		Message: "Unauthorized access to Home Assistant",
	}
	ErrEntityNotFound = &HAError{
		Code:    http.StatusNotFound,
		Message: "Entity not found",
	}
	ErrConnectionFailed = &HAError{
		Code:    0,
		Message: "Connection to Home Assistant failed",
	}
	ErrInvalidResponse = &HAError{
		Code:    0,
		Message: "Invalid response from Home Assistant",
	}
	ErrTimeout = &HAError{
		Code:    0,
		Message: "Request timeout",
	}
	ErrInvalidURL = &HAError{
		Code:    0,
		Message: "Invalid Home Assistant URL",
	}
	ErrMissingToken = &HAError{
		Code:    0,
		Message: "Home Assistant access token not configured",
	}
)

// NewHAError creates a new HAError with custom details
func NewHAError(code int, message string, details map[string]interface{}) *HAError {
	return &HAError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// withDetails returns a copy of a predefined error carrying details.
func withDetails(base *HAError, details map[string]interface{}) *HAError {
	return NewHAError(base.Code, base.Message, details)
}

// StatusCode extracts the HTTP status code carried by err, or 0.
func StatusCode(err error) int {
	var haErr *HAError
	if errors.As(err, &haErr) {
		return haErr.Code
	}
	return 0
}

// IsConnectionError reports whether err means no usable response was received.
func IsConnectionError(err error) bool {
	var haErr *HAError
	if errors.As(err, &haErr) {
		return haErr.Code == 0 && !errors.Is(haErr, ErrInvalidURL) && !errors.Is(haErr, ErrMissingToken)
	}
	return false
}

// IsAuthError checks if the error is an authentication error
func IsAuthError(err error) bool {
	var haErr *HAError
	if errors.As(err, &haErr) {
		return haErr.Code == http.StatusUnauthorized || haErr.Code == http.StatusForbidden
	}
	return false
}

// IsInvalidAddress reports whether err stems from a malformed base URL.
func IsInvalidAddress(err error) bool {
	return errors.Is(err, ErrInvalidURL)
}
