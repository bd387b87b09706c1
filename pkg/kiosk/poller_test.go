package kiosk

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robotwaiter/kiosk/pkg/robotapi"
)

// statusScript feeds the poller a fixed sequence of snapshots,
// repeating the last one.
type statusScript struct {
	mu   sync.Mutex
	seq  []*robotapi.Status
	errs []error
	i    int
}

func (s *statusScript) next() (*robotapi.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.i
	if idx >= len(s.seq) {
		idx = len(s.seq) - 1
	}
	s.i++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	return s.seq[idx], nil
}

func runPoller(t *testing.T, script *statusScript, legacy bool) (<-chan robotapi.Status, func()) {
	t.Helper()
	robot := newFakeRobot()
	robot.statusFunc = script.next

	ready := make(chan robotapi.Status, 8)
	p := NewStatusPoller(PollerConfig{
		Robot:      robot,
		Interval:   5 * time.Millisecond,
		LegacyGate: legacy,
		OnReady:    func(s robotapi.Status) { ready <- s },
	})
	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)
	return ready, cancel
}

func TestPollerFiresOnceOnArrival(t *testing.T) {
	moving := &robotapi.Status{MovementStatus: "moving", CurrentTable: "T2"}
	waiting := &robotapi.Status{CurrentTable: "T2", WaitingAtTable: true}

	script := &statusScript{seq: []*robotapi.Status{moving, waiting, waiting, waiting}}
	ready, cancel := runPoller(t, script, false)
	defer cancel()

	select {
	case s := <-ready:
		if s.CurrentTable != "T2" {
			t.Fatalf("arrival table = %q, want T2", s.CurrentTable)
		}
	case <-time.After(time.Second):
		t.Fatal("arrival never reported")
	}

	// The robot keeps waiting; no further edges.
	select {
	case <-ready:
		t.Fatal("arrival reported twice for the same stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPollerIgnoresActiveSTT(t *testing.T) {
	busy := &robotapi.Status{CurrentTable: "T2", WaitingAtTable: true, IsSTTActive: true}
	script := &statusScript{seq: []*robotapi.Status{busy, busy}}
	ready, cancel := runPoller(t, script, false)
	defer cancel()

	select {
	case <-ready:
		t.Fatal("arrival fired while a recognition session was active")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPollerLegacyGate(t *testing.T) {
	far := 1.5
	near := 0.05
	tests := []struct {
		name   string
		status *robotapi.Status
		want   bool
	}{
		{
			name:   "arrived at guest table",
			status: &robotapi.Status{MovementStatus: "idle", NavigationStatus: "success", CurrentTable: "T3", TargetDistance: &near},
			want:   true,
		},
		{
			name:   "still moving",
			status: &robotapi.Status{MovementStatus: "moving", NavigationStatus: "success", CurrentTable: "T3", TargetDistance: &near},
			want:   false,
		},
		{
			name:   "too far from target",
			status: &robotapi.Status{MovementStatus: "idle", NavigationStatus: "success", CurrentTable: "T3", TargetDistance: &far},
			want:   false,
		},
		{
			name:   "parked at start pose",
			status: &robotapi.Status{MovementStatus: "idle", NavigationStatus: "success", CurrentTable: "initial_pose"},
			want:   false,
		},
		{
			name:   "parked at dock",
			status: &robotapi.Status{MovementStatus: "idle", NavigationStatus: "success", CurrentTable: "dock"},
			want:   false,
		},
		{
			name:   "no distance reported counts as arrived",
			status: &robotapi.Status{MovementStatus: "idle", NavigationStatus: "success", CurrentTable: "T3"},
			want:   true,
		},
	}

	p := NewStatusPoller(PollerConfig{Robot: newFakeRobot(), LegacyGate: true})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.atTable(tt.status); got != tt.want {
				t.Fatalf("atTable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPollerRecoversAfterError(t *testing.T) {
	waiting := &robotapi.Status{CurrentTable: "T2", WaitingAtTable: true}
	script := &statusScript{
		seq:  []*robotapi.Status{waiting, nil, waiting, waiting},
		errs: []error{nil, errors.New("connection refused")},
	}
	ready, cancel := runPoller(t, script, false)
	defer cancel()

	// First good read fires (cold start is itself an edge), the error
	// resets detection, and the next good read fires again.
	for i := 0; i < 2; i++ {
		select {
		case <-ready:
		case <-time.After(time.Second):
			t.Fatalf("arrival %d never reported", i+1)
		}
	}
}
