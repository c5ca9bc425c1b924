package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/console/domain/session"
	"github.com/open-teleop/console/domain/teleop"
	customlog "github.com/open-teleop/console/pkg/log"
)

// InputHandler serves the manual control surface over REST.
type InputHandler struct {
	session *session.Controller
	logger  customlog.Logger
}

// RegisterInputRoutes registers /api/v1/input.
func RegisterInputRoutes(app *fiber.App, sess *session.Controller, logger customlog.Logger) {
	h := &InputHandler{session: sess, logger: logger}

	g := app.Group("/api/v1/input")
	g.Post("/joystick/start", h.handleJoystickStart)
	g.Post("/joystick/move", h.handleJoystickMove)
	g.Post("/joystick/end", h.event(EventJoystickEnd))
	g.Post("/throttle", h.handleSlider(EventThrottle))
	g.Post("/throttle/release", h.event(EventThrottleRelease))
	g.Post("/steering", h.handleSlider(EventSteering))
	g.Post("/steering/release", h.event(EventSteeringRelease))
	g.Post("/arm", h.handleArm)
	g.Post("/emergency-stop", h.event(EventEmergencyStop))
}

func (h *InputHandler) apply(c *fiber.Ctx, ev ControlEvent) error {
	out, err := applyControlEvent(h.session, ev)
	if err != nil {
		return err
	}
	if out != nil {
		return c.JSON(out)
	}
	return c.JSON(h.session.View())
}

func (h *InputHandler) event(eventType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return h.apply(c, ControlEvent{Type: eventType})
	}
}

func (h *InputHandler) handleJoystickStart(c *fiber.Ctx) error {
	var req JoystickStartRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return h.apply(c, ControlEvent{Type: EventJoystickStart, Surface: &req.Surface, Point: &req.Point})
}

func (h *InputHandler) handleJoystickMove(c *fiber.Ctx) error {
	var req JoystickMoveRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return h.apply(c, ControlEvent{Type: EventJoystickMove, Point: req.Point, Vector: req.Vector})
}

func (h *InputHandler) handleSlider(eventType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ValueRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		return h.apply(c, ControlEvent{Type: eventType, Value: req.Value})
	}
}

func (h *InputHandler) handleArm(c *fiber.Ctx) error {
	var req ArmRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return h.apply(c, ControlEvent{Type: EventArm, Direction: req.Direction})
}

// applyControlEvent runs one operator input against the session. It returns a
// non-nil body only for events with a result of their own.
func applyControlEvent(sess *session.Controller, ev ControlEvent) (interface{}, error) {
	switch ev.Type {
	case EventJoystickStart:
		if ev.Surface == nil || ev.Point == nil {
			return nil, badRequest("joystick_start needs surface and point")
		}
		started, err := sess.JoystickStart(*ev.Surface, *ev.Point)
		if err != nil {
			return nil, err
		}
		if !started {
			return fiber.Map{"started": false}, nil
		}
		return nil, nil
	case EventJoystickMove:
		switch {
		case ev.Vector != nil:
			return nil, sess.JoystickVector(*ev.Vector)
		case ev.Point != nil:
			return nil, sess.JoystickMove(*ev.Point)
		}
		return nil, badRequest("joystick_move needs point or vector")
	case EventJoystickEnd:
		return nil, sess.JoystickEnd()
	case EventThrottle, EventSteering:
		if ev.Value == nil {
			return nil, badRequest("%s needs value", ev.Type)
		}
		if ev.Type == EventThrottle {
			return nil, sess.Throttle(*ev.Value)
		}
		return nil, sess.Steering(*ev.Value)
	case EventThrottleRelease:
		anim, err := sess.ReleaseThrottle()
		if err != nil {
			return nil, err
		}
		return ReleaseResponse{Animation: anim}, nil
	case EventSteeringRelease:
		anim, err := sess.ReleaseSteering()
		if err != nil {
			return nil, err
		}
		return ReleaseResponse{Animation: anim}, nil
	case EventArm:
		d, err := teleop.ParseArmDirection(ev.Direction)
		if err != nil {
			return nil, badRequest("%v", err)
		}
		return nil, sess.Arm(d)
	case EventEmergencyStop:
		sess.EmergencyStop()
		return nil, nil
	}
	return nil, badRequest("unknown event type %q", ev.Type)
}
