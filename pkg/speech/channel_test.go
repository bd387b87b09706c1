package speech

import (
	"context"
	"errors"
	"testing"
	"time"
)

const testSettle = 20 * time.Millisecond

func newTestChannel(t *testing.T) (*Channel, *MockRecognizer) {
	t.Helper()
	rec := NewMockRecognizer()
	ch := NewChannel(context.Background(), rec, ChannelConfig{SettleDelay: testSettle})
	return ch, rec
}

func waitListening(t *testing.T, ch *Channel, want bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if ch.Listening() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("channel listening state never became %v", want)
}

func TestChannelListen(t *testing.T) {
	t.Run("listen starts recognition", func(t *testing.T) {
		ch, rec := newTestChannel(t)
		ch.RequestListen("hi-IN")

		if !ch.Listening() {
			t.Error("channel not listening after request")
		}
		calls := rec.StartCalls()
		if len(calls) != 1 || calls[0] != "hi-IN" {
			t.Errorf("expected one start with hi-IN, got %v", calls)
		}
	})

	t.Run("repeat listen does not restart", func(t *testing.T) {
		ch, rec := newTestChannel(t)
		ch.RequestListen("hi-IN")
		ch.RequestListen("hi-IN")

		if len(rec.StartCalls()) != 1 {
			t.Errorf("expected one start, got %d", len(rec.StartCalls()))
		}
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		ch, rec := newTestChannel(t)
		ch.RequestListen("hi-IN")
		ch.RequestStop(true)
		ch.RequestStop(true)

		if rec.StopCalls() != 1 {
			t.Errorf("expected one recognizer stop, got %d", rec.StopCalls())
		}
		if ch.Intent() {
			t.Error("intent survived a resetting stop")
		}
	})

	t.Run("start failure emits terminal error and clears intent", func(t *testing.T) {
		rec := NewMockRecognizer()
		rec.StartFunc = func(ctx context.Context, language string) error {
			return ErrUnauthorized
		}
		ch := NewChannel(context.Background(), rec, ChannelConfig{SettleDelay: testSettle})

		ch.RequestListen("hi-IN")

		select {
		case ev := <-ch.Events():
			if ev.Type != EventError || !errors.Is(ev.Err, ErrUnauthorized) {
				t.Errorf("expected unauthorized error event, got %+v", ev)
			}
		case <-time.After(time.Second):
			t.Fatal("no error event emitted")
		}
		if ch.Intent() {
			t.Error("intent not cleared after terminal failure")
		}
	})
}

func TestChannelMute(t *testing.T) {
	t.Run("mute pauses without clearing intent", func(t *testing.T) {
		ch, rec := newTestChannel(t)
		ch.RequestListen("hi-IN")
		ch.Mute()

		if ch.Listening() {
			t.Error("still listening while muted")
		}
		if !ch.Intent() {
			t.Error("mute cleared the listen intent")
		}
		if rec.StopCalls() != 1 {
			t.Errorf("expected one recognizer stop, got %d", rec.StopCalls())
		}
	})

	t.Run("unmute resumes after settle delay", func(t *testing.T) {
		ch, rec := newTestChannel(t)
		ch.RequestListen("hi-IN")
		ch.Mute()
		ch.Unmute()

		// Resume must not be instantaneous.
		if ch.Listening() {
			t.Error("resumed before the settle delay")
		}
		waitListening(t, ch, true)
		if len(rec.StartCalls()) != 2 {
			t.Errorf("expected two starts, got %d", len(rec.StartCalls()))
		}
	})

	t.Run("unmute without intent stays silent", func(t *testing.T) {
		ch, rec := newTestChannel(t)
		ch.Mute()
		ch.Unmute()

		time.Sleep(3 * testSettle)
		if ch.Listening() {
			t.Error("listening resumed with no intent")
		}
		if len(rec.StartCalls()) != 0 {
			t.Errorf("expected no starts, got %d", len(rec.StartCalls()))
		}
	})

	t.Run("stop during settle cancels the resume", func(t *testing.T) {
		ch, rec := newTestChannel(t)
		ch.RequestListen("hi-IN")
		ch.Mute()
		ch.Unmute()
		ch.RequestStop(true)

		time.Sleep(3 * testSettle)
		if ch.Listening() {
			t.Error("resume fired after a resetting stop")
		}
		if len(rec.StartCalls()) != 1 {
			t.Errorf("expected one start, got %d", len(rec.StartCalls()))
		}
	})

	t.Run("mute during settle cancels the resume", func(t *testing.T) {
		ch, _ := newTestChannel(t)
		ch.RequestListen("hi-IN")
		ch.Mute()
		ch.Unmute()
		ch.Mute()

		time.Sleep(3 * testSettle)
		if ch.Listening() {
			t.Error("resume fired while muted")
		}
	})

	t.Run("listen while muted defers the start", func(t *testing.T) {
		ch, rec := newTestChannel(t)
		ch.Mute()
		ch.RequestListen("hi-IN")

		if ch.Listening() {
			t.Error("started listening while muted")
		}
		ch.Unmute()
		waitListening(t, ch, true)
		if len(rec.StartCalls()) != 1 {
			t.Errorf("expected one start, got %d", len(rec.StartCalls()))
		}
	})
}

func TestChannelForwardsEvents(t *testing.T) {
	ch, rec := newTestChannel(t)
	ch.RequestListen("hi-IN")

	rec.EmitPartial("do sa")
	rec.EmitFinal("do samosa")

	got := make([]Event, 0, 2)
	for len(got) < 2 {
		select {
		case ev := <-ch.Events():
			got = append(got, ev)
		case <-time.After(time.Second):
			t.Fatalf("expected 2 events, got %d", len(got))
		}
	}
	if got[0].Type != EventPartial || got[0].Text != "do sa" {
		t.Errorf("unexpected first event: %+v", got[0])
	}
	if got[1].Type != EventFinal || got[1].Text != "do samosa" {
		t.Errorf("unexpected second event: %+v", got[1])
	}
}
