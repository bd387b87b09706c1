// Package web is the kiosk's HTTP surface: the tablet UI's REST API,
// the websocket event stream, and the metrics endpoint.
package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robotwaiter/kiosk/pkg/hub"
	"github.com/robotwaiter/kiosk/pkg/kiosk"
)

// Server serves the tablet UI API.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	orch *kiosk.Orchestrator
	nav  *kiosk.Navigator
	hub  *hub.Hub
}

// NewServer builds the fiber app and wires all routes.
func NewServer(port string, orch *kiosk.Orchestrator, nav *kiosk.Navigator, h *hub.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		port:   port,
		logger: logger.With("component", "web"),
		orch:   orch,
		nav:    nav,
		hub:    h,
	}

	app := fiber.New(fiber.Config{
		AppName:               "Kiosk API",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Get("/bill", s.handleBill)

	api.Post("/session/start", s.handleSessionStart)
	api.Post("/session/end", s.handleSessionEnd)

	api.Post("/cart/increase", s.handleCartAdjust(orch.CartIncrease))
	api.Post("/cart/decrease", s.handleCartAdjust(orch.CartDecrease))
	api.Post("/cart/delete", s.handleCartAdjust(orch.CartDelete))

	api.Post("/address", s.handleAddress)
	api.Post("/payment/event", s.handlePaymentEvent)

	api.Post("/pin", s.handlePIN)
	navAPI := api.Group("/nav")
	navAPI.Get("/poses", s.handlePoses)
	navAPI.Get("/tables", s.handleTables)
	navAPI.Post("/table", s.handleNavigateTable)
	navAPI.Post("/pose", s.handleNavigatePose)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		hub.Serve(h, conn)
	}))

	s.app = app
	return s
}

// Start runs the hub and listens. It blocks.
func (s *Server) Start() error {
	go s.hub.Run()
	s.logger.Info("kiosk api listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
