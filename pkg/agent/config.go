package agent

import (
	"log/slog"
	"time"

	"github.com/robotwaiter/kiosk/internal/httpc"
)

// Config holds agent client settings.
type Config struct {
	BaseURL string
	Token   string
	BotID   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Option configures a Config.
type Option func(*Config)

// WithBaseURL sets the agent backend base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithToken sets the bearer token.
func WithToken(token string) Option {
	return func(c *Config) { c.Token = token }
}

// WithBotID sets the agent bot identifier.
func WithBotID(id string) Option {
	return func(c *Config) { c.BotID = id }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns a Config with sensible defaults. The agent can
// take a while to think, so the timeout is generous compared to the
// shared HTTP default.
func DefaultConfig() *Config {
	return &Config{
		Timeout: 4 * httpc.DefaultTimeout,
		Logger:  slog.Default().With("component", "agent"),
	}
}

// Apply applies options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required fields are set.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	if c.Token == "" {
		return ErrNoToken
	}
	if c.BotID == "" {
		return ErrNoBotID
	}
	return nil
}
