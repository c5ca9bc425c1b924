package link

import (
	"errors"
	"fmt"
)

// Error kinds. The console treats both the same way; they are kept apart for logs.
var (
	// ErrTransport covers unreachable robots, refused connections and timeouts.
	ErrTransport = errors.New("transport error")
	// ErrProtocol covers non-success responses and undecodable bodies.
	ErrProtocol = errors.New("protocol error")
	// ErrUnknownRobot is returned when no base URL is registered for a robot.
	ErrUnknownRobot = errors.New("unknown robot")
)

// Error describes a failed link call. errors.Is matches its Kind as well as
// the wrapped cause.
type Error struct {
	Kind       error
	Op         string
	Robot      string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.Robot, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrTransport) and errors.Is(err, ErrProtocol) work.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func transportError(op, robot string, err error) error {
	return &Error{Kind: ErrTransport, Op: op, Robot: robot, Err: err}
}

func protocolError(op, robot string, code int, err error) error {
	return &Error{Kind: ErrProtocol, Op: op, Robot: robot, StatusCode: code, Err: err}
}
