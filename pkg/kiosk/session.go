package kiosk

import (
	"context"
	"fmt"

	"github.com/robotwaiter/kiosk/pkg/hub"
	"github.com/robotwaiter/kiosk/pkg/order"
	"github.com/robotwaiter/kiosk/pkg/robotapi"
)

// Snapshot is the orchestrator state the UI renders on load and after
// reconnects.
type Snapshot struct {
	State          string                `json:"state"`
	SessionActive  bool                  `json:"session_active"`
	Listening      bool                  `json:"listening"`
	Speaking       bool                  `json:"speaking"`
	PaymentOpen    bool                  `json:"payment_open"`
	SilenceRetries int                   `json:"silence_retries"`
	CartLines      map[string]order.Line `json:"cart_lines"`
	CartTotal      float64               `json:"cart_total"`
	RobotAddress   string                `json:"robot_address"`
	BillVisible    bool                  `json:"bill_visible"`
}

// Snapshot returns a consistent copy of the current state. After the
// orchestrator stops, the zero snapshot is returned.
func (o *Orchestrator) Snapshot() Snapshot {
	var snap Snapshot
	err := o.call(func() error {
		snap = Snapshot{
			State:          o.state.String(),
			SessionActive:  o.sessionID != "",
			Listening:      o.speech.Listening(),
			Speaking:       o.voice.Speaking(),
			PaymentOpen:    o.payments.IsOpen(),
			SilenceRetries: o.silenceCount,
			CartLines:      o.cart.Lines(),
			CartTotal:      o.cart.Total(),
			RobotAddress:   o.robot.Address(),
			BillVisible:    o.billHTML != "",
		}
		return nil
	})
	if err != nil {
		o.logger.Debug("snapshot unavailable", "error", err)
	}
	return snap
}

// BillHTML returns the receipt currently on display, empty when none.
func (o *Orchestrator) BillHTML() string {
	var html string
	if err := o.call(func() error {
		html = o.billHTML
		return nil
	}); err != nil {
		o.logger.Debug("bill unavailable", "error", err)
	}
	return html
}

// Cart mutation from the touch surface. The agent's next order
// directive still replaces the cart wholesale; these cover manual
// adjustments between turns.

func (o *Orchestrator) CartIncrease(name string) {
	o.post(func() {
		o.cart.Increase(name)
		o.broadcastCart()
	})
}

func (o *Orchestrator) CartDecrease(name string) {
	o.post(func() {
		o.cart.Decrease(name)
		o.broadcastCart()
	})
}

func (o *Orchestrator) CartDelete(name string) {
	o.post(func() {
		o.cart.Delete(name)
		o.broadcastCart()
	})
}

// ConfirmAddress probes the robot at addr, and on success stores the
// address and starts the status poller. The returned error wraps
// ErrRobotUnreachable when nothing answered, so the web layer can tell
// "fix the IP" apart from "robot answered but is unwell".
func (o *Orchestrator) ConfirmAddress(addr string) (*robotapi.Status, error) {
	var status *robotapi.Status
	err := o.call(func() error {
		ctx, cancel := context.WithTimeout(o.ctx, o.cfg.AddressCheck)
		defer cancel()

		st, err := o.robot.Probe(ctx, addr)
		if err != nil {
			if isNetworkError(err) {
				return fmt.Errorf("%w: %s: %v", ErrRobotUnreachable, addr, err)
			}
			return fmt.Errorf("robot at %s: %w", addr, err)
		}
		status = st
		o.robot.SetAddress(addr)
		o.logger.Info("robot address confirmed", "address", addr, "robot", st.RobotID)
		o.startPoller()
		return nil
	})
	return status, err
}

func (o *Orchestrator) startPoller() {
	o.stopPoller()
	ctx, cancel := context.WithCancel(o.ctx)
	o.pollerStop = cancel
	o.poller = NewStatusPoller(PollerConfig{
		Robot:      o.robot,
		Interval:   o.cfg.StatusPoll,
		LegacyGate: o.cfg.LegacyStatusGate,
		Logger:     o.cfg.Logger,
		OnReady:    o.handleRobotReady,
		OnStatus:   o.handleRobotStatus,
	})
	go o.poller.Run(ctx)
}

func (o *Orchestrator) stopPoller() {
	if o.pollerStop != nil {
		o.pollerStop()
		o.pollerStop = nil
		o.poller = nil
	}
}

// handleRobotReady fires when the robot arrives at a table. Auto-start
// only from a cold kiosk: never mid-session, mid-speech, or while a
// checkout is open.
func (o *Orchestrator) handleRobotReady(robotapi.Status) {
	o.post(func() {
		if o.state != StateIdle || o.voice.Speaking() || o.payments.IsOpen() {
			return
		}
		o.logger.Info("robot waiting at table, starting conversation")
		if err := o.startConversation(); err != nil {
			o.logger.Error("auto-start failed", "error", err)
		}
	})
}

func (o *Orchestrator) handleRobotStatus(status robotapi.Status) {
	if !o.cfg.ShowRobotStatus {
		return
	}
	o.notify.BroadcastEvent(hub.RobotStatusEvent(status))
}
