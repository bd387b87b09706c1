package speech

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSettleDelay is how long after the kiosk stops speaking before
// the microphone reopens. Reopening immediately picks up the tail of
// the kiosk's own audio from the tablet speaker.
const DefaultSettleDelay = 600 * time.Millisecond

// ChannelConfig holds Channel settings.
type ChannelConfig struct {
	// SettleDelay is the pause between Unmute and the actual resume.
	SettleDelay time.Duration
	Logger      *slog.Logger
}

// Channel arbitrates the guest's microphone against the kiosk's own
// voice. It tracks two independent flags: the listen intent (the
// conversation wants the guest heard) and the playback mute (the kiosk
// is speaking right now). Recognition runs only when intent is set and
// the mute is not. Muting pauses recognition without clearing intent,
// so finishing an utterance automatically resumes listening.
type Channel struct {
	rec    Recognizer
	settle time.Duration
	logger *slog.Logger
	out    chan Event

	mu          sync.Mutex
	intent      bool
	muted       bool
	listening   bool
	language    string
	resumeTimer *time.Timer
	ctx         context.Context
}

// NewChannel wraps a recognizer. The context bounds all recognition
// sessions the channel starts, including delayed resumes.
func NewChannel(ctx context.Context, rec Recognizer, cfg ChannelConfig) *Channel {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c := &Channel{
		rec:    rec,
		settle: cfg.SettleDelay,
		logger: cfg.Logger.With("component", "speech.channel"),
		out:    make(chan Event, 16),
		ctx:    ctx,
	}
	go c.forward(ctx)
	return c
}

// forward copies recognizer events to the channel's own stream so the
// channel can inject its own error events on the same stream.
func (c *Channel) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.rec.Events():
			if !ok {
				return
			}
			if ev.Type == EventError {
				// The session died underneath us.
				c.mu.Lock()
				c.listening = false
				c.mu.Unlock()
			}
			select {
			case c.out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Events returns the channel's event stream.
func (c *Channel) Events() <-chan Event {
	return c.out
}

// RequestListen records the intent to hear the guest and starts
// recognition unless playback currently has the floor. A start failure
// clears the intent and surfaces a terminal error event.
func (c *Channel) RequestListen(language string) {
	c.mu.Lock()
	c.intent = true
	c.language = language
	if c.muted || c.listening {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.startSession()
}

// RequestStop stops recognition. With resetIntent the channel also
// forgets that listening was wanted, so a later Unmute stays silent.
// Stopping an idle channel is a no-op.
func (c *Channel) RequestStop(resetIntent bool) {
	c.mu.Lock()
	if resetIntent {
		c.intent = false
	}
	if c.resumeTimer != nil {
		c.resumeTimer.Stop()
		c.resumeTimer = nil
	}
	wasListening := c.listening
	c.listening = false
	c.mu.Unlock()

	if wasListening {
		if err := c.rec.Stop(); err != nil {
			c.logger.Warn("recognizer stop failed", "error", err)
		}
	}
}

// Mute pauses recognition while the kiosk speaks. The listen intent is
// preserved.
func (c *Channel) Mute() {
	c.mu.Lock()
	if c.muted {
		c.mu.Unlock()
		return
	}
	c.muted = true
	if c.resumeTimer != nil {
		c.resumeTimer.Stop()
		c.resumeTimer = nil
	}
	wasListening := c.listening
	c.listening = false
	c.mu.Unlock()

	if wasListening {
		if err := c.rec.Stop(); err != nil {
			c.logger.Warn("recognizer stop failed", "error", err)
		}
	}
}

// Unmute lifts the playback mute. If listening is still wanted, the
// session resumes after the settle delay so the speaker tail is not
// transcribed.
func (c *Channel) Unmute() {
	c.mu.Lock()
	if !c.muted {
		c.mu.Unlock()
		return
	}
	c.muted = false
	if !c.intent || c.listening {
		c.mu.Unlock()
		return
	}
	c.resumeTimer = time.AfterFunc(c.settle, func() {
		c.mu.Lock()
		ok := c.intent && !c.muted && !c.listening
		c.resumeTimer = nil
		c.mu.Unlock()
		if ok {
			c.startSession()
		}
	})
	c.mu.Unlock()
}

// Listening reports whether a recognition session is active.
func (c *Channel) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

// Intent reports whether listening is wanted, muted or not.
func (c *Channel) Intent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intent
}

// startSession starts the recognizer and reconciles flags. Losing the
// microphone is not recoverable from inside the channel, so a start
// failure becomes a terminal error event for the conversation layer.
func (c *Channel) startSession() {
	c.mu.Lock()
	if c.muted || c.listening || !c.intent {
		c.mu.Unlock()
		return
	}
	language := c.language
	c.mu.Unlock()

	if err := c.rec.Start(c.ctx, language); err != nil {
		c.mu.Lock()
		c.intent = false
		c.mu.Unlock()
		c.logger.Error("recognition start failed", "error", err, "language", language)
		select {
		case c.out <- Event{Type: EventError, Detail: "start failed", Err: err}:
		default:
		}
		return
	}

	c.mu.Lock()
	c.listening = true
	c.mu.Unlock()
}
