package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for status codes callers branch on. Matched through
// APIError.Is, so errors.Is works on anything returned by the client.
var (
	ErrUnauthorized         = errors.New("gateway: unauthorized")
	ErrForbidden            = errors.New("gateway: forbidden")
	ErrNotFound             = errors.New("gateway: not found")
	ErrRegistrationDisabled = errors.New("gateway: registration disabled")
)

// APIError is a non-2xx gateway response. Message carries the server's
// "error" field verbatim when the body had one.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("gateway: request failed (status %d)", e.StatusCode)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrRegistrationDisabled:
		return e.StatusCode == http.StatusNotImplemented
	}
	return false
}

// ServerMessage extracts the gateway's own error text from err, or "" when
// the error did not come from a gateway response.
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}
