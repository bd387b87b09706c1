// Kiosk is the voice-ordering service for the restaurant robot: it
// listens to the guest, talks to the ordering agent, drives the
// speaker and the payment flow, and serves the tablet UI's API.
package main

import (
	"context"
	"flag"
	stdlog "log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/robotwaiter/kiosk/internal/config"
	"github.com/robotwaiter/kiosk/pkg/app"
)

func main() {
	cfg := parseFlags()

	a, err := app.New(cfg)
	if err != nil {
		stdlog.Fatalf("configuration error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Init(ctx); err != nil {
		stdlog.Fatalf("initialization failed: %v", err)
	}
	defer a.Shutdown()

	if err := a.Run(ctx); err != nil {
		stdlog.Fatalf("runtime error: %v", err)
	}
}

// parseFlags loads .env, reads the environment, and applies flag
// overrides.
func parseFlags() config.Config {
	// Missing .env is fine; production injects real env vars.
	_ = godotenv.Load()

	port := flag.String("port", "", "API port (overrides PORT)")
	robotAddr := flag.String("robot", "", "robot address (overrides ROBOT_ADDRESS)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	legacyGate := flag.Bool("legacy-status-gate", false, "use the legacy arrival condition for older robot firmware")
	flag.Parse()

	cfg := config.Load()
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *robotAddr != "" {
		cfg.Robot.Address = *robotAddr
	}
	if *logLevel != "" {
		cfg.Server.LogLevel = *logLevel
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "legacy-status-gate" {
			cfg.Kiosk.LegacyStatusGate = *legacyGate
		}
	})
	return cfg
}
