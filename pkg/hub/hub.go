// Package hub fans kiosk UI events out to the connected tablet
// screens over websockets, using a channel-based broadcast hub with
// per-client send buffers.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub maintains the set of connected screens and broadcasts events to
// them. One hub serves the whole kiosk; a second screen (kitchen view,
// debugging) just attaches as another client.
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool

	// onAudio receives binary frames from clients: the tablet relays
	// its microphone through the same socket the events go out on.
	onAudio func([]byte)
}

// New creates a hub.
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("component", "hub", "hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// SetAudioSink registers the consumer for client binary frames. Must
// be called before Run.
func (h *Hub) SetAudioSink(fn func([]byte)) {
	h.onAudio = fn
}

// Run starts the hub's main loop. Call in a goroutine.
func (h *Hub) Run() {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("screen connected", "total", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("screen disconnected", "remaining", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Buffer full: the screen has stalled, drop it.
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped stalled screen")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to every connected screen. A full
// broadcast queue drops the message rather than blocking the caller.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast queue full, dropping event")
	}
}

// BroadcastEvent encodes and broadcasts a UI event.
func (h *Hub) BroadcastEvent(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("event encode failed", "type", ev.Type, "error", err)
		return
	}
	h.Broadcast(Message{Type: JSONMessage, Data: data})
}

// ClientCount returns the number of connected screens.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether the hub loop has started.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}
