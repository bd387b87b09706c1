package speech

import (
	"context"
	"sync"
)

// MockRecognizer implements Recognizer for testing. Behavior can be
// customized via function fields, and tests inject recognition results
// with EmitPartial, EmitFinal, and EmitStatus.
type MockRecognizer struct {
	// StartFunc is called when Start is invoked. If nil, Start
	// succeeds unless a session is already active.
	StartFunc func(ctx context.Context, language string) error

	// StopFunc is called when Stop is invoked. If nil, Stop succeeds.
	StopFunc func() error

	events chan Event

	mu        sync.Mutex
	listening bool
	starts    []string
	stops     int
}

// NewMockRecognizer creates a mock with a buffered event stream.
func NewMockRecognizer() *MockRecognizer {
	return &MockRecognizer{events: make(chan Event, 32)}
}

// Start records the call and marks the session active.
func (m *MockRecognizer) Start(ctx context.Context, language string) error {
	m.mu.Lock()
	m.starts = append(m.starts, language)
	active := m.listening
	m.mu.Unlock()

	if m.StartFunc != nil {
		if err := m.StartFunc(ctx, language); err != nil {
			return err
		}
	} else if active {
		return ErrAlreadyListening
	}

	m.mu.Lock()
	m.listening = true
	m.mu.Unlock()
	return nil
}

// Stop records the call and marks the session idle.
func (m *MockRecognizer) Stop() error {
	m.mu.Lock()
	m.stops++
	m.listening = false
	m.mu.Unlock()

	if m.StopFunc != nil {
		return m.StopFunc()
	}
	return nil
}

// Events returns the injectable event stream.
func (m *MockRecognizer) Events() <-chan Event {
	return m.events
}

// Listening reports whether the mock session is active.
func (m *MockRecognizer) Listening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listening
}

// EmitPartial injects an interim hypothesis.
func (m *MockRecognizer) EmitPartial(text string) {
	m.events <- Event{Type: EventPartial, Text: text}
}

// EmitFinal injects a completed recognition result.
func (m *MockRecognizer) EmitFinal(text string) {
	m.events <- Event{Type: EventFinal, Text: text}
}

// EmitStatus injects a status notification.
func (m *MockRecognizer) EmitStatus(detail string) {
	m.events <- Event{Type: EventStatus, Detail: detail}
}

// EmitError injects a terminal error.
func (m *MockRecognizer) EmitError(err error) {
	m.events <- Event{Type: EventError, Err: err}
}

// StartCalls returns the languages passed to each Start call.
func (m *MockRecognizer) StartCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.starts))
	copy(out, m.starts)
	return out
}

// StopCalls returns the number of Stop calls.
func (m *MockRecognizer) StopCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// Verify MockRecognizer implements Recognizer at compile time.
var _ Recognizer = (*MockRecognizer)(nil)
