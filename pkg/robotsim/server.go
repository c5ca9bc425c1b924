package robotsim

import (
	"net"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

type speedRequest struct {
	Speed float64 `json:"speed"`
}

type armRequest struct {
	Direction string `json:"direction"`
}

// App returns a fiber app serving the robot control surface:
//
//	GET  /status
//	POST /move {speed}, /turn {speed}, /stop, /emergency_stop, /arm {direction}
//
// Refused motion answers 409 with the current state in the body.
func (s *Simulator) App() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Use(func(c *fiber.Ctx) error {
		if s.isOffline() {
			return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"error": "robot offline"})
		}
		return c.Next()
	})

	app.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(s.State())
	})
	app.Post("/move", func(c *fiber.Ctx) error {
		var req speedRequest
		if err := c.BodyParser(&req); err != nil {
			return s.badRequest(c, err)
		}
		return s.reply(c, s.Move(req.Speed))
	})
	app.Post("/turn", func(c *fiber.Ctx) error {
		var req speedRequest
		if err := c.BodyParser(&req); err != nil {
			return s.badRequest(c, err)
		}
		return s.reply(c, s.Turn(req.Speed))
	})
	app.Post("/stop", func(c *fiber.Ctx) error {
		s.Stop()
		return s.reply(c, true)
	})
	app.Post("/emergency_stop", func(c *fiber.Ctx) error {
		s.EmergencyStop()
		return s.reply(c, true)
	})
	app.Post("/arm", func(c *fiber.Ctx) error {
		var req armRequest
		if err := c.BodyParser(&req); err != nil {
			return s.badRequest(c, err)
		}
		switch req.Direction {
		case "up", "down", "forward", "backward":
		default:
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "unknown direction " + req.Direction})
		}
		return s.reply(c, s.Arm(req.Direction))
	})
	return app
}

// Serve runs the app on ln until the app is shut down.
func (s *Simulator) Serve(app *fiber.App, ln net.Listener) error {
	s.logger.Infof("Simulated robot listening on %s", ln.Addr())
	return app.Listener(ln)
}

func (s *Simulator) reply(c *fiber.Ctx, accepted bool) error {
	if !accepted {
		s.logger.Warnf("Refused %s %s", c.Method(), c.Path())
		return c.Status(http.StatusConflict).JSON(s.State())
	}
	return c.JSON(s.State())
}

func (s *Simulator) badRequest(c *fiber.Ctx, err error) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}
