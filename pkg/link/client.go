// Package link is the console's transport to a robot's HTTP control surface.
//
// Calls are single-shot: a client never retries. Retry policy belongs to the
// connection state machine, which simply polls again on its next tick.
package link

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/open-teleop/console/domain/teleop"
)

// Client issues commands and status polls against a robot.
type Client interface {
	SendCommand(ctx context.Context, robotID string, cmd teleop.Command) (Ack, error)
	PollStatus(ctx context.Context, robotID string) (Telemetry, error)
}

// Ack is the robot's acknowledgement of a command.
type Ack struct {
	StatusCode int    `json:"status_code"`
	Status     string `json:"status,omitempty"`
}

// Position is the robot pose on the floor plan.
type Position struct {
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Theta *float64 `json:"theta,omitempty"`
}

// Telemetry is one polled robot state. It is replaced wholesale on every poll.
type Telemetry struct {
	State        string   `json:"state"`
	Battery      float64  `json:"battery"`
	Position     Position `json:"position"`
	ArmHeight    *float64 `json:"arm_height,omitempty"`
	ArmDistance  *float64 `json:"arm_distance,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

// statusPayload accepts both the robot backend field names (status,
// battery_level) and the short form (state, battery).
type statusPayload struct {
	Status       *string  `json:"status"`
	State        *string  `json:"state"`
	BatteryLevel *float64 `json:"battery_level"`
	Battery      *float64 `json:"battery"`
	Position     Position `json:"position"`
	ArmHeight    *float64 `json:"arm_height"`
	ArmDistance  *float64 `json:"arm_distance"`
	ErrorMessage *string  `json:"error_message"`
}

// DecodeTelemetry parses a status response body.
func DecodeTelemetry(body []byte) (Telemetry, error) {
	var p statusPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Telemetry{}, fmt.Errorf("decode status: %w", err)
	}

	var t Telemetry
	switch {
	case p.Status != nil:
		t.State = *p.Status
	case p.State != nil:
		t.State = *p.State
	default:
		return Telemetry{}, fmt.Errorf("decode status: missing state")
	}
	switch {
	case p.BatteryLevel != nil:
		t.Battery = *p.BatteryLevel
	case p.Battery != nil:
		t.Battery = *p.Battery
	}
	t.Position = p.Position
	t.ArmHeight = p.ArmHeight
	t.ArmDistance = p.ArmDistance
	if p.ErrorMessage != nil {
		t.ErrorMessage = *p.ErrorMessage
	}
	return t, nil
}

// Route returns the endpoint path and JSON body for cmd.
func Route(cmd teleop.Command) (string, interface{}) {
	switch c := cmd.(type) {
	case teleop.Move:
		return "/move", map[string]float64{"speed": c.Speed}
	case teleop.Turn:
		return "/turn", map[string]float64{"speed": c.Speed}
	case teleop.Stop:
		return "/stop", struct{}{}
	case teleop.EmergencyStop:
		return "/emergency_stop", struct{}{}
	case teleop.ArmMove:
		return "/arm", map[string]string{"direction": string(c.Direction)}
	}
	return "", nil
}
