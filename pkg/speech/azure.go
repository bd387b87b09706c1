package speech

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	readDeadline            = 120 * time.Second
	pingInterval            = 30 * time.Second
)

// AzureConfig holds AzureRecognizer settings.
type AzureConfig struct {
	APIKey string
	Region string
	// Endpoint overrides the region-derived websocket URL, used in tests.
	Endpoint string
	Logger   *slog.Logger
}

// AzureRecognizer streams microphone audio to the Azure conversation
// recognition websocket endpoint and turns its hypothesis messages into
// Events. Audio frames are fed in with WriteAudio; the kiosk relays
// them from the tablet microphone.
type AzureRecognizer struct {
	cfg    AzureConfig
	logger *slog.Logger
	events chan Event

	mu        sync.Mutex
	ws        *websocket.Conn
	requestID string
	running   bool
	cancel    context.CancelFunc
}

// NewAzureRecognizer creates a recognizer for the given subscription.
func NewAzureRecognizer(cfg AzureConfig) (*AzureRecognizer, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Region == "" && cfg.Endpoint == "" {
		return nil, ErrNoRegion
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AzureRecognizer{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "speech.azure"),
		events: make(chan Event, 16),
	}, nil
}

// Start dials the recognition endpoint and begins the read pump. Only
// one session may be active at a time.
func (r *AzureRecognizer) Start(ctx context.Context, language string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrAlreadyListening
	}

	endpoint := r.cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf(
			"wss://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1",
			r.cfg.Region,
		)
	}
	connID := uuid.NewString()
	url := fmt.Sprintf("%s?language=%s&format=simple&X-ConnectionId=%s", endpoint, language, connID)

	header := make(map[string][]string)
	header["Ocp-Apim-Subscription-Key"] = []string{r.cfg.APIKey}

	dialer := websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout}
	ws, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == 401 || resp.StatusCode == 403) {
			return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
		}
		return fmt.Errorf("dial recognition endpoint: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	r.ws = ws
	r.requestID = strings.ReplaceAll(uuid.NewString(), "-", "")
	r.running = true
	r.cancel = cancel

	ws.SetPingHandler(func(appData string) error {
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})
	ws.SetReadDeadline(time.Now().Add(readDeadline))

	go r.readPump(sessionCtx, ws)
	go r.keepAlive(sessionCtx, ws)

	r.logger.Debug("recognition session started", "language", language, "connection_id", connID)
	return nil
}

// Stop closes the active session. Stopping an idle recognizer returns
// nil.
func (r *AzureRecognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked()
}

func (r *AzureRecognizer) stopLocked() error {
	if !r.running {
		return nil
	}
	r.running = false
	r.cancel()
	err := r.ws.Close()
	r.ws = nil
	r.logger.Debug("recognition session stopped")
	return err
}

// Events returns the recognizer's event stream.
func (r *AzureRecognizer) Events() <-chan Event {
	return r.events
}

// Listening reports whether a session is active.
func (r *AzureRecognizer) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// WriteAudio forwards a chunk of 16 kHz mono PCM to the active session.
func (r *AzureRecognizer) WriteAudio(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return ErrNotListening
	}
	return r.ws.WriteMessage(websocket.BinaryMessage, frameAudio(r.requestID, chunk))
}

// frameAudio builds a binary audio message: a big-endian header length,
// the text headers, then the raw audio.
func frameAudio(requestID string, chunk []byte) []byte {
	headers := fmt.Sprintf(
		"Path: audio\r\nX-RequestId: %s\r\nX-Timestamp: %s\r\nContent-Type: audio/x-wav\r\n",
		requestID, time.Now().UTC().Format(time.RFC3339Nano),
	)
	buf := make([]byte, 2+len(headers)+len(chunk))
	binary.BigEndian.PutUint16(buf[:2], uint16(len(headers)))
	copy(buf[2:], headers)
	copy(buf[2+len(headers):], chunk)
	return buf
}

// readPump reads service messages until the session ends.
func (r *AzureRecognizer) readPump(ctx context.Context, ws *websocket.Conn) {
	for {
		ws.SetReadDeadline(time.Now().Add(readDeadline))
		msgType, message, err := ws.ReadMessage()
		if err != nil {
			r.mu.Lock()
			wasRunning := r.running
			if r.running && r.ws == ws {
				r.stopLocked()
			}
			r.mu.Unlock()

			if wasRunning && ctx.Err() == nil {
				r.emit(Event{Type: EventError, Detail: "connection lost", Err: err})
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		r.handleMessage(message)
	}
}

// keepAlive pings the service so idle listening sessions stay open.
func (r *AzureRecognizer) keepAlive(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

// phraseResult is the JSON body of hypothesis and phrase messages.
type phraseResult struct {
	Text              string `json:"Text"`
	DisplayText       string `json:"DisplayText"`
	RecognitionStatus string `json:"RecognitionStatus"`
}

// handleMessage parses one service message. Messages carry a header
// block terminated by a blank line, then a JSON body; the Path header
// names the message kind.
func (r *AzureRecognizer) handleMessage(raw []byte) {
	text := string(raw)
	headerEnd := strings.Index(text, "\r\n\r\n")
	if headerEnd < 0 {
		return
	}
	path := ""
	for _, line := range strings.Split(text[:headerEnd], "\r\n") {
		if name, value, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(name), "Path") {
			path = strings.TrimSpace(value)
		}
	}
	body := text[headerEnd+4:]

	switch strings.ToLower(path) {
	case "speech.hypothesis":
		var result phraseResult
		if err := json.Unmarshal([]byte(body), &result); err != nil {
			return
		}
		if result.Text != "" {
			r.emit(Event{Type: EventPartial, Text: result.Text})
		}

	case "speech.phrase":
		var result phraseResult
		if err := json.Unmarshal([]byte(body), &result); err != nil {
			return
		}
		switch result.RecognitionStatus {
		case "Success":
			if result.DisplayText != "" {
				r.emit(Event{Type: EventFinal, Text: result.DisplayText})
			}
		case "NoMatch", "InitialSilenceTimeout":
			r.emit(Event{Type: EventStatus, Detail: result.RecognitionStatus})
		case "Error":
			r.emit(Event{Type: EventError, Detail: "recognition error", Err: ErrRecognitionFailed})
		}

	case "speech.enddetected", "turn.end":
		r.emit(Event{Type: EventStatus, Detail: path})
	}
}

// emit delivers an event without blocking the read pump; if the
// consumer has fallen behind by a full buffer, the oldest signal is the
// least useful one, but hypotheses are frequent enough that dropping a
// new one is safer than stalling the socket.
func (r *AzureRecognizer) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		r.logger.Warn("dropping recognition event, consumer backlogged", "type", ev.Type.String())
	}
}

// Verify AzureRecognizer implements Recognizer at compile time.
var _ Recognizer = (*AzureRecognizer)(nil)
