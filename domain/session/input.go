package session

import (
	"github.com/open-teleop/console/domain/input"
	"github.com/open-teleop/console/domain/teleop"
)

// JoystickStart begins a drag at p on surface. It returns false when p is
// off the stick base, in which case nothing happens.
func (c *Controller) JoystickStart(surface input.Surface, p input.Point) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.manualLocked(); err != nil {
		return false, err
	}
	c.drag.SetSurface(surface)
	v, ok := c.drag.Begin(p)
	if !ok {
		return false, nil
	}
	c.joystickLocked(v)
	return true, nil
}

// JoystickMove updates an active drag. p may be anywhere in the viewport.
func (c *Controller) JoystickMove(p input.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.manualLocked(); err != nil {
		return err
	}
	v, ok := c.drag.Move(p)
	if !ok {
		return nil
	}
	c.joystickLocked(v)
	return nil
}

// JoystickVector applies an already normalized deflection, as sent by
// clients that do their own pointer math. The vector is capped at the
// over-travel limit.
func (c *Controller) JoystickVector(v input.Vector) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.manualLocked(); err != nil {
		return err
	}
	c.joystickLocked(input.Clamp(v, c.tuning.OverTravel))
	return nil
}

// JoystickEnd releases the stick: it snaps to center and Stop plus Turn(0)
// are sent at once.
func (c *Controller) JoystickEnd() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.manualLocked(); err != nil {
		return err
	}
	c.drag.End()
	c.submitLocked(c.mapper.ReleaseJoystick())
	return nil
}

// joystickLocked drives both channels from the stick. The sliders lose
// their channels to it and read zero until moved again.
func (c *Controller) joystickLocked(v input.Vector) {
	c.throttle, c.steering = 0, 0
	c.throttleReturn, c.steeringReturn = nil, nil
	c.pulse = teleop.NewPulse(teleop.ControlJoystick, c.now(), c.tuning.Pulse())
	c.submitLocked(c.mapper.Joystick(v))
}

// Throttle sets the throttle slider.
func (c *Controller) Throttle(value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.manualLocked(); err != nil {
		return err
	}
	v, err := input.DefaultSlider.Read(value)
	if err != nil {
		return err
	}
	c.throttle = v
	c.throttleReturn = nil
	c.pulse = teleop.NewPulse(teleop.ControlThrottle, c.now(), c.tuning.Pulse())
	c.submitLocked(c.mapper.Throttle(v))
	return nil
}

// Steering sets the steering slider.
func (c *Controller) Steering(value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.manualLocked(); err != nil {
		return err
	}
	v, err := input.DefaultSlider.Read(value)
	if err != nil {
		return err
	}
	c.steering = v
	c.steeringReturn = nil
	c.pulse = teleop.NewPulse(teleop.ControlSteering, c.now(), c.tuning.Pulse())
	c.submitLocked(c.mapper.Steering(v))
	return nil
}

// ReleaseThrottle sends Stop immediately and returns the cosmetic glide the
// UI should render. The glide never delays the command.
func (c *Controller) ReleaseThrottle() (input.ReturnAnimation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.manualLocked(); err != nil {
		return input.ReturnAnimation{}, err
	}
	anim := input.ReturnAnimation{From: c.throttle, Start: c.now(), Duration: c.tuning.SliderReturn()}
	c.throttle = 0
	c.throttleReturn = &anim
	c.submitLocked(c.mapper.ReleaseThrottle())
	return anim, nil
}

// ReleaseSteering sends Turn(0) immediately and returns the cosmetic glide.
func (c *Controller) ReleaseSteering() (input.ReturnAnimation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.manualLocked(); err != nil {
		return input.ReturnAnimation{}, err
	}
	anim := input.ReturnAnimation{From: c.steering, Start: c.now(), Duration: c.tuning.SliderReturn()}
	c.steering = 0
	c.steeringReturn = &anim
	c.submitLocked(c.mapper.ReleaseSteering())
	return anim, nil
}

// Arm sends one ArmMove for a button press and flags the button.
func (c *Controller) Arm(d teleop.ArmDirection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.manualLocked(); err != nil {
		return err
	}
	c.pulse = teleop.NewPulse(teleop.ArmControl(d), c.now(), c.tuning.ArmPulse())
	c.submitLocked(c.mapper.Arm(d))
	return nil
}

// EmergencyStop sends EmergencyStop regardless of mode or pause state.
func (c *Controller) EmergencyStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zeroAxesLocked()
	c.submitLocked([]teleop.Command{teleop.EmergencyStop{}})
}

func (c *Controller) manualLocked() error {
	if c.Mode() == teleop.ModeAuto || c.paused {
		return ErrManualInputDisabled
	}
	return nil
}
