package processing

import (
	"time"

	"github.com/google/uuid"

	"github.com/open-teleop/console/domain/teleop"
	"github.com/open-teleop/console/pkg/link"
)

// Priority levels
const (
	PriorityHigh     = "HIGH"
	PriorityStandard = "STANDARD"
)

// Envelope carries one command through the dispatch pools
type Envelope struct {
	ID       string
	Seq      uint64
	RobotID  string
	Command  teleop.Command
	Priority string
	IssuedAt time.Time
}

func newEnvelope(robotID string, cmd teleop.Command, priority string, seq uint64) *Envelope {
	return &Envelope{
		ID:       uuid.NewString(),
		Seq:      seq,
		RobotID:  robotID,
		Command:  cmd,
		Priority: priority,
		IssuedAt: time.Now(),
	}
}

// Result is the outcome of dispatching an envelope
type Result struct {
	Envelope    *Envelope
	Ack         link.Ack
	Err         error
	Superseded  bool
	CompletedAt time.Time
}

// OK reports whether the robot acknowledged the command.
func (r *Result) OK() bool {
	return r.Err == nil && !r.Superseded
}

// Latency is the time from issue to completion.
func (r *Result) Latency() time.Duration {
	return r.CompletedAt.Sub(r.Envelope.IssuedAt)
}
