package kiosk

import (
	"context"
	"log/slog"
	"time"

	"github.com/robotwaiter/kiosk/pkg/robotapi"
)

// arrivalDistance is how close (meters) to the target counts as
// arrived for firmware that reports target_distance.
const arrivalDistance = 0.2

// PollerConfig configures a StatusPoller.
type PollerConfig struct {
	Robot    Robot
	Interval time.Duration
	// LegacyGate switches arrival detection to the composite condition
	// older firmware needs instead of the waiting_at_table flag.
	LegacyGate bool
	Logger     *slog.Logger

	// OnReady fires on the rising edge of "robot waiting at a table".
	OnReady func(robotapi.Status)
	// OnStatus fires whenever the snapshot changes.
	OnStatus func(robotapi.Status)
}

// StatusPoller watches the robot's status endpoint and reports
// arrivals at tables. It is edge-triggered: a robot that sits waiting
// fires once, not every tick.
type StatusPoller struct {
	robot      Robot
	interval   time.Duration
	legacyGate bool
	logger     *slog.Logger
	onReady    func(robotapi.Status)
	onStatus   func(robotapi.Status)

	prev *robotapi.Status
}

// NewStatusPoller creates a poller.
func NewStatusPoller(cfg PollerConfig) *StatusPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &StatusPoller{
		robot:      cfg.Robot,
		interval:   cfg.Interval,
		legacyGate: cfg.LegacyGate,
		logger:     cfg.Logger.With("component", "poller"),
		onReady:    cfg.OnReady,
		onStatus:   cfg.OnStatus,
	}
}

// Run polls until ctx is cancelled. It blocks; call in a goroutine.
func (p *StatusPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *StatusPoller) poll(ctx context.Context) {
	status, err := p.robot.Status(ctx)
	if err != nil {
		// A dropped poll resets edge detection so the next good read
		// can fire again.
		p.logger.Debug("status poll failed", "error", err)
		p.prev = nil
		return
	}

	changed := p.prev == nil || statusChanged(p.prev, status)
	if changed && p.onStatus != nil {
		p.onStatus(*status)
	}

	ready := p.atTable(status)
	wasReady := p.prev != nil && p.atTable(p.prev)
	if ready && !wasReady && p.onReady != nil {
		p.logger.Info("robot arrived at table", "table", status.CurrentTable)
		p.onReady(*status)
	}
	p.prev = status
}

// atTable reports whether the robot is parked at a guest table ready
// to take an order.
func (p *StatusPoller) atTable(s *robotapi.Status) bool {
	if p.legacyGate {
		return s.MovementStatus != "moving" &&
			s.NavigationStatus == "success" &&
			s.CurrentTable != "initial_pose" &&
			s.CurrentTable != "" &&
			s.CurrentTable != robotapi.DockPoseName &&
			(s.TargetDistance == nil || *s.TargetDistance < arrivalDistance) &&
			!s.IsSTTActive
	}
	return s.WaitingAtTable && !s.IsSTTActive
}

func statusChanged(a, b *robotapi.Status) bool {
	if a.MovementStatus != b.MovementStatus ||
		a.NavigationStatus != b.NavigationStatus ||
		a.CurrentTable != b.CurrentTable ||
		a.WaitingAtTable != b.WaitingAtTable ||
		a.IsSTTActive != b.IsSTTActive {
		return true
	}
	ad, bd := a.TargetDistance != nil, b.TargetDistance != nil
	if ad != bd {
		return true
	}
	return ad && *a.TargetDistance != *b.TargetDistance
}
