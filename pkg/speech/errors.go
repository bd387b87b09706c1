package speech

import "errors"

var (
	// ErrNoAPIKey is returned when no subscription key is configured.
	ErrNoAPIKey = errors.New("speech: api key not set")

	// ErrNoRegion is returned when neither a region nor an explicit
	// endpoint is configured.
	ErrNoRegion = errors.New("speech: region not set")

	// ErrUnauthorized is returned when the service rejects the
	// subscription key.
	ErrUnauthorized = errors.New("speech: unauthorized")

	// ErrAlreadyListening is returned by Start when a session is
	// already active.
	ErrAlreadyListening = errors.New("speech: recognition session already active")

	// ErrNotListening is returned when audio is written with no active
	// session.
	ErrNotListening = errors.New("speech: no active recognition session")

	// ErrRecognitionFailed is reported when the service signals an
	// unrecoverable recognition error.
	ErrRecognitionFailed = errors.New("speech: recognition failed")
)
