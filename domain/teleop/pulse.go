package teleop

import "time"

// Control names used for UI feedback.
const (
	ControlThrottle = "throttle"
	ControlSteering = "steering"
	ControlJoystick = "joystick"
)

// ArmControl returns the feedback name of an arm button, e.g. "arm-up".
func ArmControl(d ArmDirection) string {
	return "arm-" + string(d)
}

// Pulse is a short-lived "this control just moved" marker. It expires on its
// own; nothing has to clear it.
type Pulse struct {
	Control string    `json:"control"`
	Expires time.Time `json:"expires"`
}

// NewPulse flags control for window starting at now.
func NewPulse(control string, now time.Time, window time.Duration) Pulse {
	return Pulse{Control: control, Expires: now.Add(window)}
}

// ActiveAt reports whether the pulse is still showing at now.
func (p Pulse) ActiveAt(now time.Time) bool {
	return p.Control != "" && now.Before(p.Expires)
}

// At returns the flagged control at now, or "" once expired.
func (p Pulse) At(now time.Time) string {
	if !p.ActiveAt(now) {
		return ""
	}
	return p.Control
}
