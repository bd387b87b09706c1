// Package payment owns the checkout lifecycle: at most one payment is
// open at a time, every open payment reaches exactly one terminal
// outcome, and no payment stays open past its timeout.
package payment

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout is how long an open checkout may wait for a terminal
// outcome before the manager declares a timeout.
const DefaultTimeout = 2 * time.Minute

// Data is one checkout attempt. Amount is in minor currency units
// (paise).
type Data struct {
	Key         string
	Amount      int64
	Currency    string
	OrderID     string
	TableNumber string
	PaymentTime string
	SubTotal    float64
	GSTTotal    float64
	GSTNumber   string
	RobotCharge float64
	TotalAmount float64
	ReceiptHTML string
	UPIString   string
}

// OutcomeKind is the terminal state of a checkout.
type OutcomeKind int

const (
	// Success: the gateway confirmed the payment.
	Success OutcomeKind = iota
	// Cancelled: the guest dismissed the checkout surface.
	Cancelled
	// Failed: the gateway reported an error.
	Failed
	// Timeout: no terminal postback arrived in time.
	Timeout
)

// String returns a human-readable outcome name.
func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Outcome is the single terminal result of an open checkout.
type Outcome struct {
	Kind OutcomeKind
	// Detail carries the gateway error message for Failed.
	Detail string
	// TxnID is the gateway transaction id for Success.
	TxnID string
	// Data is the checkout the outcome belongs to.
	Data Data
}

// ErrPaymentOpen is returned when Open is called while a checkout is
// still pending.
var ErrPaymentOpen = errors.New("payment: checkout already open")

// Manager enforces the checkout lifecycle. The orchestrator opens a
// checkout, arms the timeout, and receives exactly one Outcome through
// the callback given to Open, after which all state is cleared.
type Manager struct {
	logger *slog.Logger

	mu       sync.Mutex
	current  *Data
	deliver  func(Outcome)
	timer    *time.Timer
	sequence uint64 // guards against a stale timer firing into a newer checkout
}

// NewManager creates a Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger.With("component", "payment")}
}

// Open registers a checkout. Only one may be open; callers must close
// the prior one first. Any timer left over from a previous checkout is
// cleared. The deliver callback receives the terminal outcome exactly
// once.
func (m *Manager) Open(data Data, deliver func(Outcome)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return ErrPaymentOpen
	}
	m.clearTimerLocked()
	m.sequence++
	d := data
	m.current = &d
	m.deliver = deliver

	m.logger.Info("checkout opened",
		"order_id", data.OrderID,
		"table", data.TableNumber,
		"amount_paise", data.Amount,
	)
	return nil
}

// Current returns a copy of the open checkout, if any.
func (m *Manager) Current() (Data, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Data{}, false
	}
	return *m.current, true
}

// IsOpen reports whether a checkout is pending.
func (m *Manager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// ArmTimeout schedules the timeout outcome. Exactly one timeout is
// pending per open checkout; arming again replaces the previous timer.
func (m *Manager) ArmTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return
	}
	m.clearTimerLocked()
	seq := m.sequence
	m.timer = time.AfterFunc(d, func() {
		m.resolve(seq, Outcome{Kind: Timeout})
	})
}

// ClearTimeout cancels the pending timeout, if any.
func (m *Manager) ClearTimeout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearTimerLocked()
}

func (m *Manager) clearTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// Close clears all payment state unconditionally. Closing an idle
// manager is a no-op. A checkout closed this way delivers no outcome;
// use the Resolve helpers for terminal postbacks.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearTimerLocked()
	if m.current != nil {
		m.logger.Debug("checkout cleared", "order_id", m.current.OrderID)
	}
	m.current = nil
	m.deliver = nil
}

// ResolveSuccess reports a gateway success postback.
func (m *Manager) ResolveSuccess(txnID string) {
	m.mu.Lock()
	seq := m.sequence
	m.mu.Unlock()
	m.resolve(seq, Outcome{Kind: Success, TxnID: txnID})
}

// ResolveCancelled reports that the guest dismissed the checkout.
func (m *Manager) ResolveCancelled() {
	m.mu.Lock()
	seq := m.sequence
	m.mu.Unlock()
	m.resolve(seq, Outcome{Kind: Cancelled})
}

// ResolveError reports a gateway failure postback.
func (m *Manager) ResolveError(detail string) {
	m.mu.Lock()
	seq := m.sequence
	m.mu.Unlock()
	m.resolve(seq, Outcome{Kind: Failed, Detail: detail})
}

// resolve delivers the outcome once and clears all state. A stale
// sequence means the checkout the caller saw is already gone; the
// outcome is dropped instead of leaking into a newer checkout.
func (m *Manager) resolve(seq uint64, outcome Outcome) {
	m.mu.Lock()
	if m.current == nil || seq != m.sequence {
		m.mu.Unlock()
		return
	}
	outcome.Data = *m.current
	deliver := m.deliver
	m.clearTimerLocked()
	m.current = nil
	m.deliver = nil
	m.mu.Unlock()

	m.logger.Info("checkout resolved",
		"order_id", outcome.Data.OrderID,
		"outcome", outcome.Kind.String(),
	)
	if deliver != nil {
		deliver(outcome)
	}
}
