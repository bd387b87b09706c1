package hub

import (
	"encoding/json"
	"testing"
	"time"
)

func TestHubRegisterAndBroadcast(t *testing.T) {
	h := New("test", nil)
	go h.Run()

	// Poll until the loop is live.
	deadline := time.Now().Add(time.Second)
	for !h.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("hub never started")
		}
		time.Sleep(time.Millisecond)
	}

	a := &Client{hub: h, send: make(chan Message, 4)}
	b := &Client{hub: h, send: make(chan Message, 4)}
	h.register <- a
	h.register <- b

	waitClients(t, h, 2)

	h.BroadcastEvent(ReplyEvent("Namaste!"))

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.send:
			if msg.Type != JSONMessage {
				t.Fatalf("message type = %d, want JSON", msg.Type)
			}
			var ev Event
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			if ev.Type != EventReply {
				t.Fatalf("event type = %q, want %q", ev.Type, EventReply)
			}
		case <-time.After(time.Second):
			t.Fatal("client never received broadcast")
		}
	}

	h.unregister <- a
	waitClients(t, h, 1)
}

func TestHubDropsStalledClient(t *testing.T) {
	h := New("test", nil)
	go h.Run()

	// Unbuffered send channel with no reader: first broadcast stalls.
	slow := &Client{hub: h, send: make(chan Message)}
	h.register <- slow
	waitClients(t, h, 1)

	h.BroadcastEvent(StateEvent("listening"))
	waitClients(t, h, 0)

	// Channel was closed when the client was dropped.
	select {
	case _, ok := <-slow.send:
		if ok {
			t.Fatal("expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel never closed")
	}
}

func TestEventPayloads(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		typ  string
		want map[string]any
	}{
		{
			name: "transcript final",
			ev:   TranscriptEvent("do samosa", true),
			typ:  EventTranscript,
			want: map[string]any{"text": "do samosa", "final": true},
		},
		{
			name: "emoji popup",
			ev:   EmojiEvent("😋", 3000),
			typ:  EventEmoji,
			want: map[string]any{"emojis": "😋", "duration_ms": float64(3000)},
		},
		{
			name: "address required",
			ev:   AddressRequiredEvent("connection timed out"),
			typ:  EventAddressRequired,
			want: map[string]any{"reason": "connection timed out"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.ev.Type != tt.typ {
				t.Fatalf("type = %q, want %q", tt.ev.Type, tt.typ)
			}
			if tt.ev.Timestamp == 0 {
				t.Fatal("timestamp not set")
			}
			raw, err := json.Marshal(tt.ev)
			if err != nil {
				t.Fatal(err)
			}
			var decoded struct {
				Payload map[string]any `json:"payload"`
			}
			if err := json.Unmarshal(raw, &decoded); err != nil {
				t.Fatal(err)
			}
			for key, want := range tt.want {
				if got := decoded.Payload[key]; got != want {
					t.Errorf("payload[%q] = %v, want %v", key, got, want)
				}
			}
		})
	}
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(time.Millisecond)
	}
}
