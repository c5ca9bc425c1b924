// Package connection tracks the perceived health of the link to the
// selected robot. A Machine polls the robot on a fixed cadence, forever, and
// regresses to scanning on any failure.
package connection

import (
	"time"

	"github.com/open-teleop/console/pkg/link"
)

// Status is the link health shown to the operator.
type Status string

const (
	// StatusIdle means no robot is selected.
	StatusIdle Status = "idle"
	// StatusScanning means the robot has not answered the last attempt.
	StatusScanning Status = "scanning"
	// StatusConnecting means a poll is in flight.
	StatusConnecting Status = "connecting"
	// StatusConnected means the last poll succeeded.
	StatusConnected Status = "connected"
)

// Snapshot is a consistent copy of the machine state.
type Snapshot struct {
	Seq       uint64          `json:"seq"`
	RobotID   string          `json:"robot_id"`
	Status    Status          `json:"status"`
	Telemetry *link.Telemetry `json:"telemetry"`
	LastError string          `json:"last_error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Connected reports whether the snapshot carries live telemetry.
func (s Snapshot) Connected() bool {
	return s.Status == StatusConnected && s.Telemetry != nil
}

// Listener receives every state change. Seq grows monotonically, so a
// listener can drop a snapshot older than one it has already seen.
type Listener func(Snapshot)
