package session

import (
	"github.com/open-teleop/console/domain/input"
	"github.com/open-teleop/console/domain/teleop"
)

// Axes are the control positions to render.
type Axes struct {
	Joystick       input.Vector `json:"joystick"`
	JoystickActive bool         `json:"joystick_active"`
	Throttle       float64      `json:"throttle"`
	Steering       float64      `json:"steering"`
}

// View is what the UI renders for the session.
type View struct {
	ID            string      `json:"id"`
	RobotID       string      `json:"robot_id"`
	Robots        []Robot     `json:"robots"`
	Mode          teleop.Mode `json:"mode"`
	Paused        bool        `json:"paused"`
	PoweredOff    bool        `json:"powered_off"`
	ActiveControl string      `json:"active_control,omitempty"`
	Axes          Axes        `json:"axes"`
}

// View returns the session state at the current time. Released sliders
// report their gliding position until the return animation ends.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()

	axes := Axes{
		Joystick:       c.drag.Current(),
		JoystickActive: c.drag.Active(),
		Throttle:       c.throttle,
		Steering:       c.steering,
	}
	if c.throttleReturn != nil && !c.throttleReturn.Done(now) {
		axes.Throttle = c.throttleReturn.Value(now)
	}
	if c.steeringReturn != nil && !c.steeringReturn.Done(now) {
		axes.Steering = c.steeringReturn.Value(now)
	}

	return View{
		ID:            c.id,
		RobotID:       c.robotID,
		Robots:        append([]Robot(nil), c.robots...),
		Mode:          c.Mode(),
		Paused:        c.paused,
		PoweredOff:    c.poweredOff,
		ActiveControl: c.pulse.At(now),
		Axes:          axes,
	}
}
