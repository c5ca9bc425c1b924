package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/console/domain/session"
	"github.com/open-teleop/console/domain/teleop"
	customlog "github.com/open-teleop/console/pkg/log"
)

// SessionHandler serves session state and the session-level buttons.
type SessionHandler struct {
	session *session.Controller
	logger  customlog.Logger
}

// RegisterSessionRoutes registers /api/v1/session.
func RegisterSessionRoutes(app *fiber.App, sess *session.Controller, logger customlog.Logger) {
	h := &SessionHandler{session: sess, logger: logger}

	g := app.Group("/api/v1/session")
	g.Get("/", h.handleGetSession)
	g.Post("/mode", h.handleSetMode)
	g.Post("/robot", h.handleSelectRobot)
	g.Post("/pause", h.handlePause)
	g.Post("/resume", h.handleResume)
	g.Post("/power-off", h.handlePowerOff)
}

func (h *SessionHandler) handleGetSession(c *fiber.Ctx) error {
	return c.JSON(h.session.View())
}

func (h *SessionHandler) handleSetMode(c *fiber.Ctx) error {
	var req ModeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	mode, err := teleop.ParseMode(req.Mode)
	if err != nil {
		return badRequest("%v", err)
	}
	if err := h.session.SetMode(mode); err != nil {
		return err
	}
	return c.JSON(h.session.View())
}

func (h *SessionHandler) handleSelectRobot(c *fiber.Ctx) error {
	var req RobotRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.RobotID == "" {
		return badRequest("robot_id is required")
	}
	if err := h.session.SelectRobot(req.RobotID); err != nil {
		return err
	}
	return c.JSON(h.session.View())
}

func (h *SessionHandler) handlePause(c *fiber.Ctx) error {
	h.session.Pause()
	return c.JSON(h.session.View())
}

func (h *SessionHandler) handleResume(c *fiber.Ctx) error {
	h.session.Resume()
	return c.JSON(h.session.View())
}

func (h *SessionHandler) handlePowerOff(c *fiber.Ctx) error {
	h.session.PowerOff()
	return c.JSON(h.session.View())
}
