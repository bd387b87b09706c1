package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/robotwaiter/kiosk/pkg/kiosk"
	"github.com/robotwaiter/kiosk/pkg/order"
)

type errorResponse struct {
	Error       string `json:"error"`
	Remediation string `json:"remediation,omitempty"`
}

func fail(c *fiber.Ctx, status int, err error, remediation string) error {
	return c.Status(status).JSON(errorResponse{Error: err.Error(), Remediation: remediation})
}

func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.orch.Snapshot())
}

func (s *Server) handleBill(c *fiber.Ctx) error {
	html := s.orch.BillHTML()
	if html == "" {
		return c.SendStatus(fiber.StatusNoContent)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(html)
}

func (s *Server) handleSessionStart(c *fiber.Ctx) error {
	if err := s.orch.StartConversation(); err != nil {
		if errors.Is(err, kiosk.ErrSessionActive) {
			return fail(c, fiber.StatusConflict, err, "end the current session first")
		}
		return fail(c, fiber.StatusBadGateway, err, "")
	}
	return c.JSON(s.orch.Snapshot())
}

func (s *Server) handleSessionEnd(c *fiber.Ctx) error {
	s.orch.EndConversation("ended from screen")
	return c.SendStatus(fiber.StatusNoContent)
}

type cartRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCartAdjust(apply func(string)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req cartRequest
		if err := c.BodyParser(&req); err != nil || req.Name == "" {
			return fail(c, fiber.StatusBadRequest, errors.New("item name required"), "")
		}
		apply(req.Name)
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type addressRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleAddress(c *fiber.Ctx) error {
	var req addressRequest
	if err := c.BodyParser(&req); err != nil || req.Address == "" {
		return fail(c, fiber.StatusBadRequest, errors.New("address required"), "")
	}
	status, err := s.orch.ConfirmAddress(req.Address)
	if err != nil {
		if errors.Is(err, kiosk.ErrRobotUnreachable) {
			return fail(c, fiber.StatusUnprocessableEntity, err,
				"check the robot is powered on and on the same network, then re-enter its address")
		}
		return fail(c, fiber.StatusBadGateway, err, "the robot answered but reported an error; check the robot's screen")
	}
	return c.JSON(status)
}

type paymentEventRequest struct {
	Event  string                `json:"event"`
	Detail string                `json:"detail"`
	Result order.GatewayResponse `json:"result"`
}

func (s *Server) handlePaymentEvent(c *fiber.Ctx) error {
	var req paymentEventRequest
	if err := c.BodyParser(&req); err != nil || req.Event == "" {
		return fail(c, fiber.StatusBadRequest, errors.New("event required"), "")
	}
	if err := s.orch.HandlePaymentEvent(req.Event, req.Result, req.Detail); err != nil {
		if errors.Is(err, kiosk.ErrNoPayment) {
			return fail(c, fiber.StatusConflict, err, "")
		}
		return fail(c, fiber.StatusBadRequest, err, "")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type pinRequest struct {
	PIN string `json:"pin"`
}

func (s *Server) handlePIN(c *fiber.Ctx) error {
	var req pinRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, errors.New("pin required"), "")
	}
	if err := s.nav.Unlock(req.PIN); err != nil {
		return fail(c, fiber.StatusUnauthorized, err, "")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) navError(c *fiber.Ctx, err error) error {
	if errors.Is(err, kiosk.ErrLocked) {
		return fail(c, fiber.StatusUnauthorized, err, "enter the staff pin first")
	}
	return fail(c, fiber.StatusBadGateway, err, "")
}

func (s *Server) handlePoses(c *fiber.Ctx) error {
	poses, err := s.nav.Poses(c.Context())
	if err != nil {
		return s.navError(c, err)
	}
	return c.JSON(poses)
}

func (s *Server) handleTables(c *fiber.Ctx) error {
	tables, err := s.nav.Tables(c.Context())
	if err != nil {
		return s.navError(c, err)
	}
	return c.JSON(tables)
}

type navigateTableRequest struct {
	Table string `json:"table"`
}

func (s *Server) handleNavigateTable(c *fiber.Ctx) error {
	var req navigateTableRequest
	if err := c.BodyParser(&req); err != nil || req.Table == "" {
		return fail(c, fiber.StatusBadRequest, errors.New("table required"), "")
	}
	if err := s.nav.NavigateToTable(c.Context(), req.Table); err != nil {
		return s.navError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

type navigatePoseRequest struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Yaw float64 `json:"yaw"`
}

func (s *Server) handleNavigatePose(c *fiber.Ctx) error {
	var req navigatePoseRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, errors.New("pose required"), "")
	}
	if err := s.nav.NavigateToPose(c.Context(), req.X, req.Y, req.Yaw); err != nil {
		return s.navError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}
