package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"
)

const providerGoogle = "google"

// Google implements Provider over the Google Cloud Text-to-Speech API.
// It serves as the fallback voice when the primary provider is down.
type Google struct {
	config *Config
	svc    *texttospeech.Service
	logger *slog.Logger
}

// NewGoogle creates a new Google Cloud TTS provider authenticated by API key.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGoogle, ErrNoAPIKey)
	}

	svcOpts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(cfg.BaseURL))
	}

	svc, err := texttospeech.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("create service: %w", err))
	}

	return &Google{
		config: cfg,
		svc:    svc,
		logger: cfg.Logger.With("component", "tts.google"),
	}, nil
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (g *Google) Synthesize(ctx context.Context, req Request) (*AudioResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, WrapError(providerGoogle, ErrEmptyText)
	}

	lang := req.Language
	if lang == "" {
		lang = g.config.Language
	}

	start := time.Now()
	resp, err := g.svc.Text.Synthesize(&texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: req.Text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: lang,
			Name:         req.Voice,
		},
		AudioConfig: &texttospeech.AudioConfig{AudioEncoding: "MP3"},
	}).Context(ctx).Do()
	if err != nil {
		return nil, WrapError(providerGoogle, err)
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("decode audio: %w", err))
	}

	latency := time.Since(start).Milliseconds()
	g.logger.Debug("synthesized audio",
		"chars", len(req.Text),
		"bytes", len(audio),
		"latency_ms", latency,
	)

	format := AudioFormat{Encoding: EncodingMP3_24, SampleRate: 24000, Channels: 1, BitrateKbps: 48}
	return &AudioResult{
		Audio:     audio,
		Format:    format,
		CharCount: len(req.Text),
		LatencyMs: latency,
		Duration:  estimateMP3Duration(len(audio), format.BitrateKbps),
	}, nil
}

// Health lists available voices to verify connectivity and key validity.
func (g *Google) Health(ctx context.Context) error {
	_, err := g.svc.Voices.List().Context(ctx).Do()
	return WrapError(providerGoogle, err)
}

// Close releases resources held by the provider.
func (g *Google) Close() error {
	return nil
}

// Verify Google implements Provider at compile time.
var _ Provider = (*Google)(nil)
