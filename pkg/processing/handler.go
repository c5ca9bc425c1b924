package processing

import (
	"encoding/json"
	"time"

	customlog "github.com/open-teleop/console/pkg/log"
)

// TopicCommand is the publish topic for dispatch results
const TopicCommand = "console.command"

// MessagePublisher defines the interface for publishing messages
type MessagePublisher interface {
	PublishMessage(topic string, data []byte) error
}

// LinkMonitor is told about command outcomes
type LinkMonitor interface {
	CommandFailed(robotID string, cause error)
	PollNow()
}

// ResultRecorder persists dispatch results
type ResultRecorder interface {
	RecordCommand(result *Result) error
}

// CommandEvent is the published form of a result
type CommandEvent struct {
	ID         string    `json:"id"`
	RobotID    string    `json:"robot_id"`
	Kind       string    `json:"kind"`
	Command    string    `json:"command"`
	Priority   string    `json:"priority"`
	OK         bool      `json:"ok"`
	Superseded bool      `json:"superseded,omitempty"`
	Error      string    `json:"error,omitempty"`
	IssuedAt   time.Time `json:"issued_at"`
	LatencyUs  int64     `json:"latency_us"`
}

// NewCommandEvent converts a result for publishing
func NewCommandEvent(result *Result) CommandEvent {
	env := result.Envelope
	ev := CommandEvent{
		ID:         env.ID,
		RobotID:    env.RobotID,
		Kind:       string(env.Command.Kind()),
		Command:    env.Command.String(),
		Priority:   env.Priority,
		OK:         result.OK(),
		Superseded: result.Superseded,
		IssuedAt:   env.IssuedAt,
		LatencyUs:  result.Latency().Microseconds(),
	}
	if result.Err != nil {
		ev.Error = result.Err.Error()
	}
	return ev
}

// ConsoleResultHandler feeds dispatch results back into the console: a
// failure regresses the connection, a success triggers an immediate status
// poll. Results are then journaled and published. Every collaborator is optional.
type ConsoleResultHandler struct {
	logger    customlog.Logger
	monitor   LinkMonitor
	recorder  ResultRecorder
	publisher MessagePublisher
}

// NewConsoleResultHandler creates a new result handler
func NewConsoleResultHandler(logger customlog.Logger, monitor LinkMonitor, recorder ResultRecorder, publisher MessagePublisher) *ConsoleResultHandler {
	return &ConsoleResultHandler{
		logger:    logger,
		monitor:   monitor,
		recorder:  recorder,
		publisher: publisher,
	}
}

// HandleResult handles a dispatch result
func (h *ConsoleResultHandler) HandleResult(result *Result) {
	env := result.Envelope
	if result.Superseded {
		return
	}

	if h.monitor != nil {
		if result.Err != nil {
			h.monitor.CommandFailed(env.RobotID, result.Err)
		} else {
			h.monitor.PollNow()
		}
	}
	if result.Err == nil {
		h.logger.Debugf("Command %s acknowledged by %s in %s", env.Command, env.RobotID, result.Latency())
	}

	if h.recorder != nil {
		if err := h.recorder.RecordCommand(result); err != nil {
			h.logger.Warnf("Failed to journal command %s: %v", env.ID, err)
		}
	}

	if h.publisher != nil {
		data, err := json.Marshal(NewCommandEvent(result))
		if err != nil {
			h.logger.Errorf("Failed to encode command event: %v", err)
			return
		}
		if err := h.publisher.PublishMessage(TopicCommand, data); err != nil {
			h.logger.Errorf("Failed to publish message for topic '%s': %v", TopicCommand, err)
		}
	}
}

// CreateHandlerFunc creates a ResultHandler function for the pools
func (h *ConsoleResultHandler) CreateHandlerFunc() ResultHandler {
	return func(result *Result) {
		if result == nil || result.Envelope == nil {
			h.logger.Errorf("Received nil dispatch result")
			return
		}
		h.HandleResult(result)
	}
}
