package tts

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventType identifies a playback lifecycle event.
type EventType int

const (
	// EventStart fires when an utterance begins playing.
	EventStart EventType = iota
	// EventPreEnd fires shortly before an utterance finishes, giving
	// listeners time to prepare the next turn (resume recognition,
	// pre-warm the next prompt).
	EventPreEnd
	// EventEnd fires when an utterance finishes or fails.
	EventEnd
)

// String returns a human-readable event name.
func (e EventType) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventPreEnd:
		return "preend"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Event is a playback lifecycle notification.
type Event struct {
	Type EventType
	// Duration is the estimated playback duration of the current
	// utterance. Zero for EventEnd.
	Duration time.Duration
	// Text is the utterance text, useful for logging and UI captions.
	Text string
}

// Player renders synthesized audio to an output device. Play blocks
// until playback completes or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, audio *AudioResult) error
}

// PlayerFunc adapts a function to the Player interface.
type PlayerFunc func(ctx context.Context, audio *AudioResult) error

// Play calls f.
func (f PlayerFunc) Play(ctx context.Context, audio *AudioResult) error {
	return f(ctx, audio)
}

// PacedPlayer is a Player that sleeps for the estimated duration of the
// audio. It is used when the actual audio device lives on the other side
// of a websocket and the service only needs to pace event delivery.
type PacedPlayer struct{}

// Play blocks for the estimated duration of the audio.
func (PacedPlayer) Play(ctx context.Context, audio *AudioResult) error {
	select {
	case <-time.After(audio.Duration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SequencerConfig holds Sequencer construction options.
type SequencerConfig struct {
	// PreEndOffset is how long before the expected end of playback the
	// EventPreEnd notification fires. The pre-end event is skipped
	// entirely for utterances shorter than this offset.
	PreEndOffset time.Duration
	Logger       *slog.Logger
}

// Sequencer plays synthesized utterances strictly in enqueue order, one
// at a time. Each utterance produces EventStart, optionally EventPreEnd,
// and always EventEnd. A synthesis or playback failure degrades to an
// immediate EventEnd so listeners never wait on an utterance that will
// not arrive.
type Sequencer struct {
	provider Provider
	player   Player
	offset   time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	queue   []*queued
	playing bool
	closed  bool
	handler func(Event)

	ctx    context.Context
	cancel context.CancelFunc
	idle   chan struct{} // closed and replaced when the queue drains
}

type queued struct {
	req  Request
	done chan error
}

// NewSequencer creates a Sequencer that synthesizes with provider and
// renders with player.
func NewSequencer(provider Provider, player Player, cfg SequencerConfig) *Sequencer {
	if cfg.PreEndOffset <= 0 {
		cfg.PreEndOffset = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	return &Sequencer{
		provider: provider,
		player:   player,
		offset:   cfg.PreEndOffset,
		logger:   cfg.Logger,
		ctx:      ctx,
		cancel:   cancel,
		idle:     idle,
	}
}

// SetHandler registers the single event listener. It must be called
// before the first Enqueue; later calls replace the listener between
// utterances.
func (s *Sequencer) SetHandler(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
}

// Enqueue adds an utterance to the playback queue. The returned channel
// receives exactly one value when the utterance finishes: nil on
// success, the synthesis or playback error otherwise. Playback order
// matches enqueue order regardless of per-utterance synthesis latency.
func (s *Sequencer) Enqueue(req Request) <-chan error {
	done := make(chan error, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		done <- ErrSequencerClosed
		return done
	}
	s.queue = append(s.queue, &queued{req: req, done: done})
	if !s.playing {
		s.playing = true
		s.idle = make(chan struct{})
		go s.drain()
	}
	s.mu.Unlock()

	return done
}

// Speaking reports whether an utterance is currently playing or queued.
func (s *Sequencer) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Pending returns the number of queued utterances, including the one
// currently playing.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.queue)
	if s.playing {
		n++
	}
	return n
}

// Wait blocks until the queue is empty and nothing is playing, or ctx
// is cancelled.
func (s *Sequencer) Wait(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops playback and fails all queued utterances with
// ErrSequencerClosed. It is safe to call more than once.
func (s *Sequencer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	s.cancel()
	for _, q := range pending {
		q.done <- ErrSequencerClosed
	}
	return nil
}

// drain plays queued utterances one at a time until the queue empties.
// Only one drain goroutine runs at a time, which is what guarantees
// strict FIFO order and non-overlapping events.
func (s *Sequencer) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.closed {
			s.playing = false
			close(s.idle)
			s.mu.Unlock()
			return
		}
		q := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		q.done <- s.play(q.req)
	}
}

// play synthesizes and renders a single utterance, emitting lifecycle
// events around it. On any failure it emits EventEnd immediately so the
// conversation never stalls waiting for audio that will not play.
func (s *Sequencer) play(req Request) error {
	audio, err := s.provider.Synthesize(s.ctx, req)
	if err != nil {
		s.logger.Error("tts synthesis failed",
			"error", err,
			"chars", len(req.Text))
		s.emit(Event{Type: EventEnd, Text: req.Text})
		return err
	}

	s.emit(Event{Type: EventStart, Duration: audio.Duration, Text: req.Text})

	var preEnd *time.Timer
	if audio.Duration > s.offset {
		dur := audio.Duration
		text := req.Text
		preEnd = time.AfterFunc(audio.Duration-s.offset, func() {
			s.emit(Event{Type: EventPreEnd, Duration: dur, Text: text})
		})
	}

	err = s.player.Play(s.ctx, audio)
	if preEnd != nil {
		preEnd.Stop()
	}
	if err != nil {
		s.logger.Warn("tts playback interrupted", "error", err)
	}

	s.emit(Event{Type: EventEnd, Text: req.Text})
	return err
}

func (s *Sequencer) emit(ev Event) {
	s.mu.Lock()
	fn := s.handler
	s.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}
