package agent

import (
	"context"
	"sync"
)

// Mock implements Conversation for testing. Behavior is customized via
// function fields; unset fields return canned successes.
type Mock struct {
	// StartSessionFunc is called when StartSession is invoked.
	StartSessionFunc func(ctx context.Context) (*Result, error)

	// SendUtteranceFunc is called when SendUtterance is invoked.
	SendUtteranceFunc func(ctx context.Context, sessionID, text string) (*Result, error)

	mu         sync.Mutex
	starts     int
	utterances []string
}

// NewMock creates a mock that greets and echoes.
func NewMock() *Mock {
	return &Mock{
		StartSessionFunc: func(ctx context.Context) (*Result, error) {
			return &Result{
				SessionID:  "mock-session",
				Reply:      "Namaste! What would you like to order?",
				Directives: DefaultDirectives(),
			}, nil
		},
		SendUtteranceFunc: func(ctx context.Context, sessionID, text string) (*Result, error) {
			return &Result{
				SessionID:  sessionID,
				Reply:      "You said: " + text,
				Directives: DefaultDirectives(),
			}, nil
		},
	}
}

// StartSession calls StartSessionFunc and records the call.
func (m *Mock) StartSession(ctx context.Context) (*Result, error) {
	m.mu.Lock()
	m.starts++
	m.mu.Unlock()
	if m.StartSessionFunc != nil {
		return m.StartSessionFunc(ctx)
	}
	return nil, ErrNoSession
}

// SendUtterance calls SendUtteranceFunc and records the utterance.
func (m *Mock) SendUtterance(ctx context.Context, sessionID, text string) (*Result, error) {
	m.mu.Lock()
	m.utterances = append(m.utterances, text)
	m.mu.Unlock()
	if m.SendUtteranceFunc != nil {
		return m.SendUtteranceFunc(ctx, sessionID, text)
	}
	return nil, ErrNoSession
}

// StartCalls returns the number of StartSession calls.
func (m *Mock) StartCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Utterances returns the texts passed to SendUtterance.
func (m *Mock) Utterances() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.utterances))
	copy(out, m.utterances)
	return out
}

// Verify Mock implements Conversation at compile time.
var _ Conversation = (*Mock)(nil)
