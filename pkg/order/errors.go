package order

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBackendURL is returned when the order backend URL is not
	// configured.
	ErrNoBackendURL = errors.New("order: backend url not set")

	// ErrNothingToPay is returned when a payment is initiated with a
	// zero total.
	ErrNothingToPay = errors.New("order: nothing to pay")
)

// BackendError is a non-200 response from the order backend.
type BackendError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("order: backend %s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("order: backend %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// IsServerError returns true for 5xx responses.
func (e *BackendError) IsServerError() bool {
	return e.StatusCode >= 500
}
