package api

import (
	"github.com/open-teleop/console/domain/connection"
	"github.com/open-teleop/console/domain/input"
	"github.com/open-teleop/console/domain/session"
	"github.com/open-teleop/console/pkg/journal"
	"github.com/open-teleop/console/pkg/processing"
)

// --- Request bodies ---

// ModeRequest switches between manual and auto
type ModeRequest struct {
	Mode string `json:"mode"`
}

// RobotRequest selects a robot
type RobotRequest struct {
	RobotID string `json:"robot_id"`
}

// ValueRequest carries a slider value. Value is a pointer so a missing
// field is rejected instead of read as zero.
type ValueRequest struct {
	Value *float64 `json:"value"`
}

// JoystickStartRequest begins a drag on the stick base
type JoystickStartRequest struct {
	Surface input.Surface `json:"surface"`
	Point   input.Point   `json:"point"`
}

// JoystickMoveRequest moves an active drag. Clients doing their own pointer
// math send Vector instead of Point.
type JoystickMoveRequest struct {
	Point  *input.Point  `json:"point,omitempty"`
	Vector *input.Vector `json:"vector,omitempty"`
}

// ArmRequest pulses one arm direction
type ArmRequest struct {
	Direction string `json:"direction"`
}

// --- WebSocket messages ---

// Control event types accepted on /ws/control
const (
	EventJoystickStart   = "joystick_start"
	EventJoystickMove    = "joystick_move"
	EventJoystickEnd     = "joystick_end"
	EventThrottle        = "throttle"
	EventSteering        = "steering"
	EventThrottleRelease = "throttle_release"
	EventSteeringRelease = "steering_release"
	EventArm             = "arm"
	EventEmergencyStop   = "emergency_stop"
)

// ControlEvent is one operator input received over /ws/control
type ControlEvent struct {
	Type      string         `json:"type"`
	Surface   *input.Surface `json:"surface,omitempty"`
	Point     *input.Point   `json:"point,omitempty"`
	Vector    *input.Vector  `json:"vector,omitempty"`
	Value     *float64       `json:"value,omitempty"`
	Direction string         `json:"direction,omitempty"`
}

// ControlReply answers a ControlEvent that could not be applied
type ControlReply struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// --- Responses ---

// StatusMessage is the combined state pushed on /ws/status
type StatusMessage struct {
	Session    session.View        `json:"session"`
	Connection connection.Snapshot `json:"connection"`
}

// ReleaseResponse tells the UI how to animate a released slider
type ReleaseResponse struct {
	Animation input.ReturnAnimation `json:"animation"`
}

// DiagnosticsResponse reports dispatch health
type DiagnosticsResponse struct {
	Pools          map[string]processing.PoolMetrics `json:"pools"`
	Commands       map[string]map[string]interface{} `json:"commands"`
	RecentCommands []journal.CommandEntry            `json:"recent_commands,omitempty"`
	RecentLinks    []journal.ConnectionEntry         `json:"recent_links,omitempty"`
}
