package tts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const providerAzure = "azure"

// Azure implements Provider against the Azure Cognitive Services speech
// synthesis REST endpoint. This is the kiosk's primary voice.
type Azure struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewAzure creates a new Azure TTS provider.
func NewAzure(opts ...Option) (*Azure, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.Region)
	}

	return &Azure{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger.With("component", "tts.azure"),
		baseURL: baseURL,
	}, nil
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (a *Azure) Synthesize(ctx context.Context, req Request) (*AudioResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, WrapError(providerAzure, ErrEmptyText)
	}

	start := time.Now()
	ssml := a.buildSSML(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, strings.NewReader(ssml))
	if err != nil {
		return nil, WrapError(providerAzure, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", a.config.APIKey)
	httpReq.Header.Set("X-Microsoft-OutputFormat", string(a.config.OutputFormat))

	resp, err := a.doWithRetry(ctx, httpReq, ssml)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	if resp.StatusCode != http.StatusOK {
		return nil, a.parseError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerAzure, fmt.Errorf("read response: %w", err))
	}

	a.logger.Debug("synthesized audio",
		"chars", len(req.Text),
		"bytes", len(audio),
		"latency_ms", latency,
	)

	format := AudioFormat{Encoding: a.config.OutputFormat, SampleRate: 16000, Channels: 1, BitrateKbps: 32}
	return &AudioResult{
		Audio:     audio,
		Format:    format,
		CharCount: len(req.Text),
		LatencyMs: latency,
		Duration:  estimateMP3Duration(len(audio), format.BitrateKbps),
	}, nil
}

// Health checks connectivity by synthesizing a single space.
func (a *Azure) Health(ctx context.Context) error {
	_, err := a.Synthesize(ctx, Request{Text: "ok"})
	return err
}

// Close releases resources held by the provider.
func (a *Azure) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

// buildSSML wraps the request text in a minimal SSML document.
func (a *Azure) buildSSML(req Request) string {
	lang := req.Language
	if lang == "" {
		lang = a.config.Language
	}
	voice := req.Voice
	if voice == "" {
		voice = a.config.Voice
	}

	text := escapeSSML(req.Text)
	return fmt.Sprintf(
		`<speak version="1.0" xml:lang=%q><voice xml:lang=%q name=%q>%s</voice></speak>`,
		lang, lang, voice, text,
	)
}

// doWithRetry retries retryable failures with a fixed delay. The request body
// is rebuilt per attempt because http.Request bodies are single-use.
func (a *Azure) doWithRetry(ctx context.Context, req *http.Request, body string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(a.config.RetryDelay):
			case <-ctx.Done():
				return nil, WrapError(providerAzure, ctx.Err())
			}
			req = req.Clone(ctx)
			req.Body = io.NopCloser(strings.NewReader(body))
		}

		resp, err := a.client.Do(req)
		if err != nil {
			lastErr = WrapError(providerAzure, err)
			continue
		}

		if apiErr, ok := statusToAPIError(providerAzure, resp); ok && apiErr.IsRetryable() {
			resp.Body.Close()
			lastErr = apiErr
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError converts a non-200 response into an APIError.
func (a *Azure) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
		Provider:   providerAzure,
	}
}

// statusToAPIError inspects the status code without consuming the body.
func statusToAPIError(provider string, resp *http.Response) (*APIError, bool) {
	if resp.StatusCode == http.StatusOK {
		return nil, false
	}
	return &APIError{StatusCode: resp.StatusCode, Provider: provider}, true
}

// escapeSSML escapes XML-significant characters in spoken text.
func escapeSSML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return r.Replace(s)
}

// Verify Azure implements Provider at compile time.
var _ Provider = (*Azure)(nil)
