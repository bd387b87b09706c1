package kiosk

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/robotwaiter/kiosk/pkg/robotapi"
)

// unlockWindow is how long a correct PIN keeps the navigation config
// surface open before it re-locks itself.
const unlockWindow = 5 * time.Minute

var (
	// ErrBadPIN is returned for a wrong PIN.
	ErrBadPIN = errors.New("kiosk: incorrect pin")
	// ErrLocked is returned for navigation calls before Unlock.
	ErrLocked = errors.New("kiosk: navigation locked")
)

// Navigator is the staff-facing navigation configuration flow. It is
// independent of the turn loop: staff reposition the robot between
// guests, so it carries its own lock instead of going through the
// orchestrator's event loop.
type Navigator struct {
	robot Robot
	pin   string

	mu       sync.Mutex
	unlocked time.Time
}

// NewNavigator creates a navigator gated by pin.
func NewNavigator(robot Robot, pin string) *Navigator {
	return &Navigator{robot: robot, pin: pin}
}

// Unlock opens the navigation surface when pin matches.
func (n *Navigator) Unlock(pin string) error {
	if subtle.ConstantTimeCompare([]byte(pin), []byte(n.pin)) != 1 {
		return ErrBadPIN
	}
	n.mu.Lock()
	n.unlocked = time.Now()
	n.mu.Unlock()
	return nil
}

// Lock closes the surface immediately.
func (n *Navigator) Lock() {
	n.mu.Lock()
	n.unlocked = time.Time{}
	n.mu.Unlock()
}

// Unlocked reports whether the surface is currently open.
func (n *Navigator) Unlocked() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.unlocked.IsZero() && time.Since(n.unlocked) < unlockWindow
}

func (n *Navigator) gate() error {
	if !n.Unlocked() {
		return ErrLocked
	}
	return nil
}

// Poses lists the robot's saved navigation poses.
func (n *Navigator) Poses(ctx context.Context) ([]robotapi.Pose, error) {
	if err := n.gate(); err != nil {
		return nil, err
	}
	return n.robot.Poses(ctx)
}

// Tables lists the serveable tables.
func (n *Navigator) Tables(ctx context.Context) ([]robotapi.Table, error) {
	if err := n.gate(); err != nil {
		return nil, err
	}
	return n.robot.Tables(ctx)
}

// NavigateToTable sends the robot to a named table.
func (n *Navigator) NavigateToTable(ctx context.Context, table string) error {
	if err := n.gate(); err != nil {
		return err
	}
	return n.robot.NavigateToTable(ctx, table)
}

// NavigateToPose sends the robot to raw map coordinates.
func (n *Navigator) NavigateToPose(ctx context.Context, x, y, yaw float64) error {
	if err := n.gate(); err != nil {
		return err
	}
	return n.robot.NavigateToPose(ctx, x, y, yaw)
}
