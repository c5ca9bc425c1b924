package teleop

import (
	"math"

	"github.com/open-teleop/console/domain/input"
)

// DefaultDeadZone is the axis magnitude treated as exactly neutral.
const DefaultDeadZone = 0.05

// ModeSource reports the current control mode. Implementations must not
// block, the mapper consults it on every input event.
type ModeSource interface {
	Mode() Mode
}

// channel groups commands that supersede each other on the robot.
type channel int

const (
	driveChannel channel = iota
	turnChannel
)

// Mapper turns control values into robot commands.
//
// Every method returns nil while the mode source reports ModeAuto, whatever
// the input. Continuous axis updates that would repeat the neutral command
// already sent on the same channel are dropped; releases always emit. Mapper
// is not safe for concurrent use.
type Mapper struct {
	deadZone float64
	modes    ModeSource
	last     map[channel]Command
}

// NewMapper creates a mapper gated by modes. deadZone <= 0 uses DefaultDeadZone.
func NewMapper(deadZone float64, modes ModeSource) *Mapper {
	if deadZone <= 0 {
		deadZone = DefaultDeadZone
	}
	return &Mapper{
		deadZone: deadZone,
		modes:    modes,
		last:     make(map[channel]Command),
	}
}

// DeadZone returns the configured dead-zone.
func (m *Mapper) DeadZone() float64 {
	return m.deadZone
}

// Throttle maps the throttle slider: Move(v), or Stop inside the dead-zone.
func (m *Mapper) Throttle(v float64) []Command {
	if !m.manual() {
		return nil
	}
	return m.emit(nil, driveChannel, m.drive(v), false)
}

// Steering maps the steering slider: Turn(v), or Turn(0) inside the dead-zone.
func (m *Mapper) Steering(v float64) []Command {
	if !m.manual() {
		return nil
	}
	return m.emit(nil, turnChannel, m.turn(v), false)
}

// Joystick maps a deflection to a drive command from -Y (up is forward)
// followed by a turn command from X. Each axis has its own dead-zone.
func (m *Mapper) Joystick(v input.Vector) []Command {
	if !m.manual() {
		return nil
	}
	out := m.emit(nil, driveChannel, m.drive(-v.Y), false)
	return m.emit(out, turnChannel, m.turn(v.X), false)
}

// ReleaseThrottle emits Stop for a released throttle.
func (m *Mapper) ReleaseThrottle() []Command {
	if !m.manual() {
		return nil
	}
	return m.emit(nil, driveChannel, Stop{}, true)
}

// ReleaseSteering emits Turn(0) for a released steering slider.
func (m *Mapper) ReleaseSteering() []Command {
	if !m.manual() {
		return nil
	}
	return m.emit(nil, turnChannel, Turn{}, true)
}

// ReleaseJoystick emits Stop and Turn(0) for a released joystick.
func (m *Mapper) ReleaseJoystick() []Command {
	if !m.manual() {
		return nil
	}
	out := m.emit(nil, driveChannel, Stop{}, true)
	return m.emit(out, turnChannel, Turn{}, true)
}

// Arm emits exactly one ArmMove per press.
func (m *Mapper) Arm(d ArmDirection) []Command {
	if !m.manual() {
		return nil
	}
	return []Command{ArmMove{Direction: d}}
}

// Neutral returns Stop and Turn(0) regardless of mode. The session uses it
// when taking authority away from manual input.
func (m *Mapper) Neutral() []Command {
	out := m.emit(nil, driveChannel, Stop{}, true)
	return m.emit(out, turnChannel, Turn{}, true)
}

// Forget clears the suppression memory so the next neutral is sent again.
func (m *Mapper) Forget() {
	m.last = make(map[channel]Command)
}

func (m *Mapper) manual() bool {
	return m.modes == nil || m.modes.Mode() != ModeAuto
}

func (m *Mapper) drive(v float64) Command {
	if m.neutral(v) {
		return Stop{}
	}
	return Move{Speed: v}
}

func (m *Mapper) turn(v float64) Command {
	if m.neutral(v) {
		return Turn{}
	}
	return Turn{Speed: v}
}

func (m *Mapper) neutral(v float64) bool {
	return math.IsNaN(v) || math.Abs(v) < m.deadZone
}

func (m *Mapper) emit(out []Command, ch channel, cmd Command, force bool) []Command {
	if !force && IsNeutral(cmd) {
		if prev, ok := m.last[ch]; ok && prev == cmd {
			return out
		}
	}
	m.last[ch] = cmd
	return append(out, cmd)
}
