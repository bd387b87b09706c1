package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBaseURL is returned when the backend URL is not configured.
	ErrNoBaseURL = errors.New("agent: base url not set")

	// ErrNoToken is returned when the bearer token is not configured.
	ErrNoToken = errors.New("agent: access token not set")

	// ErrNoBotID is returned when the bot id is not configured.
	ErrNoBotID = errors.New("agent: bot id not set")

	// ErrNoSession is returned when a session id is required but
	// missing, either from the caller or from a start-session response.
	ErrNoSession = errors.New("agent: no session id")

	// ErrEmptyUtterance is returned when there is nothing to send.
	ErrEmptyUtterance = errors.New("agent: empty utterance")
)

// APIError is a non-200 response from the agent backend.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("agent: backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("agent: backend returned status %d: %s", e.StatusCode, e.Message)
}

// IsServerError returns true for 5xx responses.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// IsUnauthorized returns true if the token was rejected (HTTP 401).
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}
