// Package app assembles the kiosk service: speech in, agent, speech
// out, orders, payments, robot control, and the web surface.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robotwaiter/kiosk/internal/config"
	"github.com/robotwaiter/kiosk/internal/httpc"
	"github.com/robotwaiter/kiosk/internal/log"
	"github.com/robotwaiter/kiosk/pkg/agent"
	"github.com/robotwaiter/kiosk/pkg/hub"
	"github.com/robotwaiter/kiosk/pkg/kiosk"
	"github.com/robotwaiter/kiosk/pkg/order"
	"github.com/robotwaiter/kiosk/pkg/payment"
	"github.com/robotwaiter/kiosk/pkg/robotapi"
	"github.com/robotwaiter/kiosk/pkg/speech"
	"github.com/robotwaiter/kiosk/pkg/tts"
	"github.com/robotwaiter/kiosk/pkg/web"
)

// App is the assembled kiosk service.
type App struct {
	cfg config.Config

	recognizer *speech.AzureRecognizer
	channel    *speech.Channel
	sequencer  *tts.Sequencer
	synth      tts.Provider
	orch       *kiosk.Orchestrator
	hub        *hub.Hub
	server     *web.Server
}

// New validates cfg and prepares an app. Init builds the components.
func New(cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &App{cfg: cfg}, nil
}

// Init constructs every component and wires them together.
func (a *App) Init(ctx context.Context) error {
	log.Init(a.cfg.Server.LogLevel)
	logger := log.L()

	// Speech out: Azure first, Google as fallback when configured,
	// with a synthesis cache in front of the chain.
	azure, err := tts.NewAzure(
		tts.WithAPIKey(a.cfg.Speech.Key),
		tts.WithRegion(a.cfg.Speech.Region),
		tts.WithVoice(a.cfg.Speech.Voice),
		tts.WithLanguage(a.cfg.Speech.Language),
		tts.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("tts: %w", err)
	}
	providers := []tts.Provider{azure}
	if a.cfg.Speech.GoogleKey != "" {
		google, err := tts.NewGoogle(ctx,
			tts.WithAPIKey(a.cfg.Speech.GoogleKey),
			tts.WithLanguage(a.cfg.Speech.Language),
			tts.WithLogger(logger),
		)
		if err != nil {
			logger.Warn("google tts unavailable, continuing without fallback", "error", err)
		} else {
			providers = append(providers, google)
		}
	}
	chain, err := tts.NewChain(providers...)
	if err != nil {
		return fmt.Errorf("tts chain: %w", err)
	}
	a.synth = tts.NewCache(chain)
	a.sequencer = tts.NewSequencer(a.synth, tts.PacedPlayer{}, tts.SequencerConfig{
		PreEndOffset: a.cfg.Kiosk.PreEndOffset,
		Logger:       logger,
	})

	// Speech in.
	a.recognizer, err = speech.NewAzureRecognizer(speech.AzureConfig{
		APIKey: a.cfg.Speech.Key,
		Region: a.cfg.Speech.Region,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("speech: %w", err)
	}
	a.channel = speech.NewChannel(ctx, a.recognizer, speech.ChannelConfig{
		SettleDelay: a.cfg.Kiosk.SettleDelay,
		Logger:      logger,
	})

	// The tablet relays its microphone as binary frames on the event
	// socket; feed them straight into the recognizer.
	a.hub = hub.New("ui", logger)
	a.hub.SetAudioSink(func(chunk []byte) {
		if err := a.recognizer.WriteAudio(chunk); err != nil {
			logger.Debug("audio frame dropped", "error", err)
		}
	})

	conv, err := agent.NewClient(
		agent.WithBaseURL(a.cfg.Agent.BaseURL),
		agent.WithToken(a.cfg.Agent.Token),
		agent.WithBotID(a.cfg.Agent.BotID),
		agent.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("agent: %w", err)
	}

	robotOpts := []robotapi.Option{
		robotapi.WithLogger(logger),
		robotapi.WithHTTPClient(httpc.NewClient(a.cfg.Kiosk.RobotAPITimeout)),
		robotapi.WithPort(a.cfg.Robot.Port),
	}
	if a.cfg.Robot.Address != "" {
		robotOpts = append(robotOpts, robotapi.WithAddress(a.cfg.Robot.Address))
	}
	robot := robotapi.NewClient(robotOpts...)

	orders, err := order.NewClient(a.cfg.Orders.BaseURL, order.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("orders: %w", err)
	}

	a.orch = kiosk.New(kiosk.Config{
		Language:              a.cfg.Speech.Language,
		Voice:                 a.cfg.Speech.Voice,
		SilenceWindow:         a.cfg.Kiosk.SilenceWindow,
		SilenceRetryLimit:     a.cfg.Kiosk.SilenceRetryLimit,
		PaymentTimeout:        a.cfg.Kiosk.PaymentTimeout,
		EmojiDisplay:          a.cfg.Kiosk.EmojiDisplay,
		BillDisplay:           a.cfg.Kiosk.BillDisplay,
		AddressCheck:          a.cfg.Kiosk.AddressCheck,
		StatusPoll:            a.cfg.Kiosk.StatusPoll,
		LegacyStatusGate:      a.cfg.Kiosk.LegacyStatusGate,
		PaymentKey:            a.cfg.Orders.PaymentKey,
		ShowPartialTranscript: a.cfg.Features.ShowPartialTranscript,
		ShowFinalTranscript:   a.cfg.Features.ShowFinalTranscript,
		ShowRobotStatus:       a.cfg.Features.ShowRobotStatus,
		ShowEmojiPopup:        a.cfg.Features.ShowEmojiPopup,
		Logger:                logger,
	}, kiosk.Deps{
		Speech:   a.channel,
		Voice:    a.sequencer,
		Agent:    conv,
		Orders:   orders,
		Payments: payment.NewManager(logger),
		Robot:    robot,
		Notifier: a.hub,
		Matcher:  a.loadMenu(ctx, orders, log.For("menu")),
	})

	nav := kiosk.NewNavigator(robot, a.cfg.Kiosk.PIN)
	a.server = web.NewServer(a.cfg.Server.Port, a.orch, nav, a.hub, logger)
	return nil
}

// loadMenu fetches the menu once for name normalization. A missing or
// failing menu endpoint just disables normalization.
func (a *App) loadMenu(ctx context.Context, orders *order.Client, logger *slog.Logger) order.Matcher {
	source := orders
	if a.cfg.Orders.MenuURL != "" {
		menuClient, err := order.NewClient(a.cfg.Orders.MenuURL)
		if err != nil {
			logger.Warn("menu source misconfigured", "error", err)
			return nil
		}
		source = menuClient
	}
	dishes, err := source.Menu(ctx)
	if err != nil {
		logger.Warn("menu unavailable, name normalization disabled", "error", err)
		return nil
	}
	logger.Info("menu loaded", "dishes", len(dishes))
	return order.NewMenuService(dishes)
}

// Run starts the orchestrator and serves the web API until ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.orch.Run(ctx)

	// A preconfigured robot address is confirmed on boot so the status
	// poller starts without waiting for the screen.
	if a.cfg.Robot.Address != "" {
		if _, err := a.orch.ConfirmAddress(a.cfg.Robot.Address); err != nil {
			log.Warn("stored robot address failed its check", "address", a.cfg.Robot.Address, "error", err)
		}
	}

	errc := make(chan error, 1)
	go func() { errc <- a.server.Start() }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		return err
	}
}

// Shutdown releases everything in reverse dependency order.
func (a *App) Shutdown() {
	if a.server != nil {
		if err := a.server.Shutdown(); err != nil {
			log.Warn("web shutdown", "error", err)
		}
	}
	if a.sequencer != nil {
		a.sequencer.Close()
	}
	if a.synth != nil {
		a.synth.Close()
	}
	if a.recognizer != nil {
		a.recognizer.Stop()
	}
}
