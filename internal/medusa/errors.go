package medusa

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a non-2xx answer from the commerce backend.
type Error struct {
	Status  int    `json:"-"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("medusa: %d %s: %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("medusa: %d: %s", e.Status, e.Message)
}

func statusOf(err error) int {
	var me *Error
	if errors.As(err, &me) {
		return me.Status
	}
	return 0
}

// IsNotFound reports a 404 from the backend.
func IsNotFound(err error) bool { return statusOf(err) == http.StatusNotFound }

// IsUnauthorized reports a 401 from the backend (expired or missing customer token).
func IsUnauthorized(err error) bool { return statusOf(err) == http.StatusUnauthorized }

// IsInvalid reports a 400 validation error from the backend.
func IsInvalid(err error) bool { return statusOf(err) == http.StatusBadRequest }

// Message returns the backend message for display, or a generic one.
func Message(err error) string {
	var me *Error
	if errors.As(err, &me) && me.Message != "" {
		return me.Message
	}
	return "Something went wrong, please try again."
}
