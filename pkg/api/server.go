// Package api is the HTTP and WebSocket surface the operator UI talks to.
package api

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/open-teleop/console/domain/input"
	"github.com/open-teleop/console/domain/session"
	"github.com/open-teleop/console/pkg/processing"
)

// NewApp creates the fiber app with the console middleware and error handler.
func NewApp(accessLog bool) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Open-Teleop Console",
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})
	if accessLog {
		app.Use(logger.New())
	}
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})
	return app
}

// ErrorHandler renders every handler error as {"error": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, session.ErrUnknownRobot):
		return fiber.StatusNotFound
	case errors.Is(err, session.ErrManualInputDisabled):
		return fiber.StatusConflict
	case errors.Is(err, input.ErrInvalidValue), errors.Is(err, session.ErrNoRobots):
		return fiber.StatusBadRequest
	case errors.Is(err, processing.ErrDirectorStopped):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func badRequest(format string, args ...interface{}) error {
	return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf(format, args...))
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}
