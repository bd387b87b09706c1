// Package agent talks to the conversational agent backend that drives
// the kiosk's dialogue. The backend streams newline-delimited JSON
// fragments whose free-text replies may embed a loosely formatted
// control block; this package hides all of that behind StartSession
// and SendUtterance, which return a cleaned reply plus normalized
// directives.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Conversation is the dialogue surface the orchestrator depends on.
type Conversation interface {
	StartSession(ctx context.Context) (*Result, error)
	SendUtterance(ctx context.Context, sessionID, text string) (*Result, error)
}

// Result is one agent exchange: the session it belongs to, the text to
// speak, and the directives extracted from the reply.
type Result struct {
	SessionID  string
	Reply      string
	Directives Directives
}

// Client calls the agent completions endpoint.
type Client struct {
	config *Config
	client *http.Client
}

// NewClient creates an agent client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// StartSession opens a new conversation and returns the greeting. The
// backend allocates the session id; a response without one is a hard
// failure because nothing else can proceed.
func (c *Client) StartSession(ctx context.Context) (*Result, error) {
	payload := map[string]string{
		"question":         "",
		"current_datetime": time.Now().Format("2006-01-02 15:04:05"),
	}

	result, err := c.completions(ctx, payload, "")
	if err != nil {
		return nil, err
	}
	if result.SessionID == "" {
		return nil, ErrNoSession
	}

	c.config.Logger.Info("conversation session started", "session_id", result.SessionID)
	return result, nil
}

// SendUtterance forwards the guest's words and returns the agent's
// reply for the turn.
func (c *Client) SendUtterance(ctx context.Context, sessionID, text string) (*Result, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyUtterance
	}

	payload := map[string]string{
		"question":   text,
		"session_id": sessionID,
	}

	result, err := c.completions(ctx, payload, sessionID)
	if err != nil {
		return nil, err
	}

	c.config.Logger.Debug("utterance exchanged",
		"session_id", result.SessionID,
		"chars_in", len(text),
		"chars_out", len(result.Reply),
		"is_order", result.Directives.IsOrder,
	)
	return result, nil
}

// completions posts to the agent endpoint and parses the streamed body.
func (c *Client) completions(ctx context.Context, payload map[string]string, fallbackSession string) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/agentbots/%s/completions", c.config.BaseURL, c.config.BotID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.Token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return parseStream(string(raw), fallbackSession), nil
}

// Verify Client implements Conversation at compile time.
var _ Conversation = (*Client)(nil)
