// Package config loads kiosk service configuration from environment
// variables with viper. Flag overrides are applied in cmd/kiosk.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Timer defaults. These mirror the values the kiosk has always shipped with;
// change them through the environment, not here.
const (
	DefaultSilenceWindow     = 6 * time.Second
	DefaultSilenceRetryLimit = 3
	DefaultPaymentTimeout    = 2 * time.Minute
	DefaultStatusPoll        = 3 * time.Second
	DefaultSettleDelay       = 600 * time.Millisecond
	DefaultPreEndOffset      = 2 * time.Second
	DefaultEmojiDisplay      = 3 * time.Second
	DefaultBillDisplay       = 15 * time.Second
	DefaultAddressCheck      = 8 * time.Second
	DefaultRobotAPITimeout   = 15 * time.Second
)

// Config holds all configuration for the kiosk service.
// It is data only; parsing and validation happen at load time.
type Config struct {
	Server struct {
		Port     string
		LogLevel string
	}

	Speech struct {
		Key      string
		Region   string
		Language string // default recognition language, e.g. "hi-IN"
		Voice    string // default synthesis voice
		// GoogleKey enables the Google TTS fallback provider when set.
		GoogleKey string
	}

	Agent struct {
		BaseURL string
		Token   string
		BotID   string
	}

	Robot struct {
		Address string // host:port, empty until confirmed through the UI
		Port    string // API port used when only a host is entered
	}

	Orders struct {
		BaseURL    string // order backend (save_order / start_payment / payment_success)
		PaymentKey string // payment gateway key id embedded in checkout payloads
		MenuURL    string // menu matching service, empty disables normalization
	}

	Kiosk struct {
		PIN               string
		SilenceWindow     time.Duration
		SilenceRetryLimit int
		PaymentTimeout    time.Duration
		StatusPoll        time.Duration
		SettleDelay       time.Duration
		PreEndOffset      time.Duration
		EmojiDisplay      time.Duration
		BillDisplay       time.Duration
		AddressCheck      time.Duration
		RobotAPITimeout   time.Duration

		// Gate auto-start on the legacy composite status condition instead
		// of waiting_at_table. Kept for robots running older firmware.
		LegacyStatusGate bool
	}

	Features struct {
		ShowPartialTranscript bool
		ShowFinalTranscript   bool
		ShowRobotStatus       bool
		ShowEmojiPopup        bool
	}
}

// ErrMissingSpeechKey is returned when the speech service key is absent.
var ErrMissingSpeechKey = errors.New("config: SPEECH_KEY is required")

// ErrMissingAgentToken is returned when the agent backend token is absent.
var ErrMissingAgentToken = errors.New("config: AGENT_TOKEN is required")

// Load reads configuration from the environment.
func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", "8090")
	v.SetDefault("server.log_level", "info")

	v.SetDefault("speech.region", "centralindia")
	v.SetDefault("speech.language", "hi-IN")
	v.SetDefault("speech.voice", "en-IN-Meera:DragonHDLatestNeural")

	v.SetDefault("robot.port", "8080")

	v.SetDefault("kiosk.pin", "1234")
	v.SetDefault("kiosk.silence_window", DefaultSilenceWindow)
	v.SetDefault("kiosk.silence_retry_limit", DefaultSilenceRetryLimit)
	v.SetDefault("kiosk.payment_timeout", DefaultPaymentTimeout)
	v.SetDefault("kiosk.status_poll", DefaultStatusPoll)
	v.SetDefault("kiosk.settle_delay", DefaultSettleDelay)
	v.SetDefault("kiosk.pre_end_offset", DefaultPreEndOffset)
	v.SetDefault("kiosk.emoji_display", DefaultEmojiDisplay)
	v.SetDefault("kiosk.bill_display", DefaultBillDisplay)
	v.SetDefault("kiosk.address_check", DefaultAddressCheck)
	v.SetDefault("kiosk.robot_api_timeout", DefaultRobotAPITimeout)
	v.SetDefault("kiosk.legacy_status_gate", false)

	v.SetDefault("features.show_partial_transcript", true)
	v.SetDefault("features.show_final_transcript", true)
	v.SetDefault("features.show_robot_status", true)
	v.SetDefault("features.show_emoji_popup", true)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")

	v.BindEnv("speech.key", "SPEECH_KEY")
	v.BindEnv("speech.region", "SPEECH_REGION")
	v.BindEnv("speech.language", "SPEECH_LANGUAGE")
	v.BindEnv("speech.voice", "SPEECH_VOICE")
	v.BindEnv("speech.google_key", "GOOGLE_TTS_KEY")

	v.BindEnv("agent.base_url", "AGENT_BASE_URL")
	v.BindEnv("agent.token", "AGENT_TOKEN")
	v.BindEnv("agent.bot_id", "AGENT_BOT_ID")

	v.BindEnv("robot.address", "ROBOT_ADDRESS")
	v.BindEnv("robot.port", "ROBOT_PORT")

	v.BindEnv("orders.base_url", "ORDERS_BASE_URL")
	v.BindEnv("orders.payment_key", "PAYMENT_KEY_ID")
	v.BindEnv("orders.menu_url", "MENU_URL")

	v.BindEnv("kiosk.pin", "KIOSK_PIN")
	v.BindEnv("kiosk.silence_window", "SILENCE_WINDOW")
	v.BindEnv("kiosk.silence_retry_limit", "SILENCE_RETRY_LIMIT")
	v.BindEnv("kiosk.payment_timeout", "PAYMENT_TIMEOUT")
	v.BindEnv("kiosk.status_poll", "STATUS_POLL_INTERVAL")
	v.BindEnv("kiosk.settle_delay", "SETTLE_DELAY")
	v.BindEnv("kiosk.legacy_status_gate", "LEGACY_STATUS_GATE")

	v.BindEnv("features.show_partial_transcript", "SHOW_PARTIAL_TRANSCRIPT")
	v.BindEnv("features.show_final_transcript", "SHOW_FINAL_TRANSCRIPT")
	v.BindEnv("features.show_robot_status", "SHOW_ROBOT_STATUS")
	v.BindEnv("features.show_emoji_popup", "SHOW_EMOJI_POPUP")

	var c Config
	c.Server.Port = v.GetString("server.port")
	c.Server.LogLevel = v.GetString("server.log_level")

	c.Speech.Key = v.GetString("speech.key")
	c.Speech.Region = v.GetString("speech.region")
	c.Speech.Language = v.GetString("speech.language")
	c.Speech.Voice = v.GetString("speech.voice")
	c.Speech.GoogleKey = v.GetString("speech.google_key")

	c.Agent.BaseURL = v.GetString("agent.base_url")
	c.Agent.Token = v.GetString("agent.token")
	c.Agent.BotID = v.GetString("agent.bot_id")

	c.Robot.Address = v.GetString("robot.address")
	c.Robot.Port = v.GetString("robot.port")

	c.Orders.BaseURL = v.GetString("orders.base_url")
	c.Orders.PaymentKey = v.GetString("orders.payment_key")
	c.Orders.MenuURL = v.GetString("orders.menu_url")

	c.Kiosk.PIN = v.GetString("kiosk.pin")
	c.Kiosk.SilenceWindow = v.GetDuration("kiosk.silence_window")
	c.Kiosk.SilenceRetryLimit = v.GetInt("kiosk.silence_retry_limit")
	c.Kiosk.PaymentTimeout = v.GetDuration("kiosk.payment_timeout")
	c.Kiosk.StatusPoll = v.GetDuration("kiosk.status_poll")
	c.Kiosk.SettleDelay = v.GetDuration("kiosk.settle_delay")
	c.Kiosk.PreEndOffset = v.GetDuration("kiosk.pre_end_offset")
	c.Kiosk.EmojiDisplay = v.GetDuration("kiosk.emoji_display")
	c.Kiosk.BillDisplay = v.GetDuration("kiosk.bill_display")
	c.Kiosk.AddressCheck = v.GetDuration("kiosk.address_check")
	c.Kiosk.RobotAPITimeout = v.GetDuration("kiosk.robot_api_timeout")
	c.Kiosk.LegacyStatusGate = v.GetBool("kiosk.legacy_status_gate")

	c.Features.ShowPartialTranscript = v.GetBool("features.show_partial_transcript")
	c.Features.ShowFinalTranscript = v.GetBool("features.show_final_transcript")
	c.Features.ShowRobotStatus = v.GetBool("features.show_robot_status")
	c.Features.ShowEmojiPopup = v.GetBool("features.show_emoji_popup")

	return c
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Speech.Key == "" {
		return ErrMissingSpeechKey
	}
	if c.Agent.Token == "" {
		return ErrMissingAgentToken
	}
	return nil
}
