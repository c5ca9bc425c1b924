// Package teleop defines the robot command set and maps operator input onto it.
package teleop

import (
	"fmt"
	"strings"
)

// Kind names a command variant. It doubles as the priority lookup key.
type Kind string

// Command kinds
const (
	KindMove          Kind = "move"
	KindTurn          Kind = "turn"
	KindStop          Kind = "stop"
	KindArm           Kind = "arm"
	KindEmergencyStop Kind = "emergency_stop"
)

// Command is a robot command. The set of implementations is closed:
// Move, Turn, Stop, ArmMove and EmergencyStop.
type Command interface {
	Kind() Kind
	String() string
	command()
}

// Move drives forward (positive) or backward (negative).
type Move struct {
	Speed float64 `json:"speed"`
}

// Turn rotates in place; zero means stop turning.
type Turn struct {
	Speed float64 `json:"speed"`
}

// Stop halts drive motion.
type Stop struct{}

// ArmMove nudges the install arm one step.
type ArmMove struct {
	Direction ArmDirection `json:"direction"`
}

// EmergencyStop cuts all motion on the robot.
type EmergencyStop struct{}

func (Move) Kind() Kind          { return KindMove }
func (Turn) Kind() Kind          { return KindTurn }
func (Stop) Kind() Kind          { return KindStop }
func (ArmMove) Kind() Kind       { return KindArm }
func (EmergencyStop) Kind() Kind { return KindEmergencyStop }

func (c Move) String() string        { return fmt.Sprintf("Move(%.2f)", c.Speed) }
func (c Turn) String() string        { return fmt.Sprintf("Turn(%.2f)", c.Speed) }
func (Stop) String() string          { return "Stop" }
func (c ArmMove) String() string     { return fmt.Sprintf("ArmMove(%s)", c.Direction) }
func (EmergencyStop) String() string { return "EmergencyStop" }

func (Move) command()          {}
func (Turn) command()          {}
func (Stop) command()          {}
func (ArmMove) command()       {}
func (EmergencyStop) command() {}

// ArmDirection is one of the four arm buttons.
type ArmDirection string

// Arm directions
const (
	ArmForward  ArmDirection = "forward"
	ArmBackward ArmDirection = "backward"
	ArmUp       ArmDirection = "up"
	ArmDown     ArmDirection = "down"
)

// ParseArmDirection validates a direction coming from the UI.
func ParseArmDirection(s string) (ArmDirection, error) {
	switch d := ArmDirection(strings.ToLower(strings.TrimSpace(s))); d {
	case ArmForward, ArmBackward, ArmUp, ArmDown:
		return d, nil
	}
	return "", fmt.Errorf("unknown arm direction %q", s)
}

// IsNeutral reports whether c asks the robot to hold still on its channel.
func IsNeutral(c Command) bool {
	switch c := c.(type) {
	case Stop:
		return true
	case Turn:
		return c.Speed == 0
	}
	return false
}

// Mode selects which control source holds command authority.
type Mode string

// Modes
const (
	ModeManual Mode = "manual"
	ModeAuto   Mode = "auto"
)

// ParseMode validates a mode coming from the UI.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeManual, ModeAuto:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}
