// Package tts provides a unified interface for text-to-speech providers and
// the playback sequencer that serializes synthesized speech.
//
// Providers implement the Provider interface, enabling seamless switching
// (and chained fallback) without changing caller code. The Sequencer consumes
// a Provider and guarantees strict FIFO, no-overlap playback with start,
// pre-end and end lifecycle events.
//
// Example usage:
//
//	provider, _ := tts.NewAzure(
//	    tts.WithAPIKey(os.Getenv("SPEECH_KEY")),
//	    tts.WithRegion("centralindia"),
//	)
//	defer provider.Close()
//
//	seq := tts.NewSequencer(tts.NewCache(provider), nil)
//	done := seq.Enqueue(tts.Request{Text: "Welcome!", Language: "hi-IN"})
//	<-done
package tts

import (
	"context"
	"time"
)

// Request describes one synthesis request.
type Request struct {
	// Text is the plain text to synthesize.
	Text string

	// Language is the BCP-47 language tag (e.g. "hi-IN"). Empty uses the
	// provider's configured default.
	Language string

	// Voice is the synthesis voice name. Empty uses the provider default.
	Voice string
}

// Provider defines the TTS provider interface.
// All implementations must satisfy this interface for seamless provider switching.
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	Synthesize(ctx context.Context, req Request) (*AudioResult, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the raw audio data in the specified format.
	Audio []byte

	// Format describes the audio encoding.
	Format AudioFormat

	// Duration is the estimated audio playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the time to first byte in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding specifies the audio codec.
	Encoding Encoding

	// SampleRate in Hz.
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// BitrateKbps for compressed formats.
	BitrateKbps int
}

// Encoding represents audio encoding types.
type Encoding string

const (
	// EncodingMP3_16 is 16kHz 32kbps mono MP3, the kiosk speaker format.
	EncodingMP3_16 Encoding = "audio-16khz-32kbitrate-mono-mp3"

	// EncodingMP3_24 is 24kHz 48kbps mono MP3.
	EncodingMP3_24 Encoding = "audio-24khz-48kbitrate-mono-mp3"
)

// estimateMP3Duration estimates playback duration from compressed size.
func estimateMP3Duration(byteLen, bitrateKbps int) time.Duration {
	if bitrateKbps <= 0 {
		bitrateKbps = 32
	}
	ms := int64(byteLen) * 8 / int64(bitrateKbps)
	return time.Duration(ms) * time.Millisecond
}
