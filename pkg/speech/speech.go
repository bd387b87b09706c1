// Package speech provides streaming speech recognition for the kiosk's
// voice channel: a Recognizer abstraction over the Azure speech
// websocket endpoint, and a Channel that arbitrates between the guest's
// intent to be heard and the kiosk's own voice output.
package speech

import "context"

// EventType classifies recognizer output.
type EventType int

const (
	// EventPartial is an interim hypothesis; the text may still change.
	EventPartial EventType = iota
	// EventFinal is a completed recognition result for one utterance.
	EventFinal
	// EventStatus reports a non-text condition such as silence detected
	// or the end of a recognition turn.
	EventStatus
	// EventError reports a terminal failure; the session is over and a
	// new Start is required.
	EventError
)

// String returns a human-readable event type name.
func (t EventType) String() string {
	switch t {
	case EventPartial:
		return "partial"
	case EventFinal:
		return "final"
	case EventStatus:
		return "status"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single recognizer notification.
type Event struct {
	Type EventType
	// Text carries the hypothesis for partial and final events.
	Text string
	// Detail holds the status name or error description.
	Detail string
	// Err is set for EventError.
	Err error
}

// Recognizer converts an audio stream into recognition events. One
// recognition session runs at a time; Start fails if one is active.
type Recognizer interface {
	// Start opens a recognition session in the given BCP-47 language.
	Start(ctx context.Context, language string) error
	// Stop ends the current session. Stopping an idle recognizer is a
	// no-op.
	Stop() error
	// Events returns the stream of recognition events. The channel is
	// owned by the recognizer and stays open across sessions.
	Events() <-chan Event
}
