// Package session holds the single operator session: selected robot, control
// mode and the manual input path. It is the only place that decides whether
// operator input may reach the robot.
package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/open-teleop/console/domain/input"
	"github.com/open-teleop/console/domain/teleop"
	"github.com/open-teleop/console/pkg/config"
	"github.com/open-teleop/console/pkg/log"
)

var (
	// ErrUnknownRobot is returned when selecting a robot that is not in the roster.
	ErrUnknownRobot = errors.New("unknown robot")
	// ErrManualInputDisabled is returned for manual input in auto mode or while paused.
	ErrManualInputDisabled = errors.New("manual input disabled")
	// ErrNoRobots is returned when the roster is empty.
	ErrNoRobots = errors.New("robot roster is empty")
)

// CommandSink accepts commands for delivery. Submit must not block on the robot.
type CommandSink interface {
	Submit(robotID string, cmd teleop.Command) error
}

// ConnectionResetter is notified when the selected robot changes.
type ConnectionResetter interface {
	Reset(robotID string)
}

// Robot is a selectable roster entry.
type Robot struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Controller is the operator session. Its methods are safe for concurrent use;
// input events are serialised so commands leave in the order events arrived.
type Controller struct {
	id     string
	sink   CommandSink
	conn   ConnectionResetter
	logger log.Logger
	tuning config.InputConfig
	now    func() time.Time

	mode atomic.Value // teleop.Mode

	mu             sync.Mutex
	robots         []Robot
	robotID        string
	paused         bool
	poweredOff     bool
	mapper         *teleop.Mapper
	drag           *input.DragTracker
	throttle       float64
	steering       float64
	throttleReturn *input.ReturnAnimation
	steeringReturn *input.ReturnAnimation
	pulse          teleop.Pulse
}

// New creates a session in manual mode with defaultRobot selected, or the
// first roster entry when defaultRobot is empty.
func New(robots []Robot, defaultRobot string, tuning config.InputConfig, sink CommandSink, conn ConnectionResetter, logger log.Logger) (*Controller, error) {
	if len(robots) == 0 {
		return nil, ErrNoRobots
	}
	if sink == nil {
		return nil, errors.New("session: command sink is required")
	}
	if logger == nil {
		logger = log.Nop()
	}
	tuning = tuning.WithDefaults()

	c := &Controller{
		id:     uuid.NewString(),
		sink:   sink,
		conn:   conn,
		tuning: tuning,
		now:    time.Now,
		robots: append([]Robot(nil), robots...),
		drag:   input.NewDragTracker(input.Surface{Radius: 1}, tuning.OverTravel),
	}
	c.logger = logger.WithField("session", c.id[:8])
	c.mode.Store(teleop.ModeManual)
	c.mapper = teleop.NewMapper(tuning.DeadZone, c)

	if defaultRobot == "" {
		defaultRobot = robots[0].ID
	}
	if !c.knownLocked(defaultRobot) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRobot, defaultRobot)
	}
	c.robotID = defaultRobot
	c.logger.Infof("Session started with robot %s", defaultRobot)
	return c, nil
}

// ID returns the session identifier.
func (c *Controller) ID() string {
	return c.id
}

// Mode returns the current control mode. It never blocks.
func (c *Controller) Mode() teleop.Mode {
	return c.mode.Load().(teleop.Mode)
}

// RobotID returns the selected robot.
func (c *Controller) RobotID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.robotID
}

// Robots returns the roster.
func (c *Controller) Robots() []Robot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Robot(nil), c.robots...)
}

// SetMode switches between manual and auto. Entering auto zeroes every
// manual axis and sends the neutral pair before returning, so no later
// manual event can overtake it. Leaving auto sends nothing.
func (c *Controller) SetMode(mode teleop.Mode) error {
	if mode != teleop.ModeManual && mode != teleop.ModeAuto {
		return fmt.Errorf("unknown mode %q", mode)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Mode() == mode {
		return nil
	}
	c.mode.Store(mode)
	c.logger.Infof("Mode changed to %s", mode)

	if mode == teleop.ModeAuto {
		c.zeroAxesLocked()
		c.submitLocked(c.mapper.Neutral())
		return nil
	}
	c.mapper.Forget()
	return nil
}

// SelectRobot switches the session to robotID. A robot still under manual
// motion is sent the neutral pair first. The connection is reset.
func (c *Controller) SelectRobot(robotID string) error {
	c.mu.Lock()
	if !c.knownLocked(robotID) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownRobot, robotID)
	}
	if robotID == c.robotID {
		c.mu.Unlock()
		return nil
	}
	if c.movingLocked() {
		c.submitLocked(c.mapper.Neutral())
	}
	prev := c.robotID
	c.robotID = robotID
	c.zeroAxesLocked()
	c.mapper.Forget()
	c.mu.Unlock()

	c.logger.Infof("Robot changed %s -> %s", prev, robotID)
	if c.conn != nil {
		c.conn.Reset(robotID)
	}
	return nil
}

// SetRoster replaces the robot list. When the selected robot disappears the
// first entry is selected instead.
func (c *Controller) SetRoster(robots []Robot) error {
	if len(robots) == 0 {
		return ErrNoRobots
	}
	c.mu.Lock()
	c.robots = append([]Robot(nil), robots...)
	keep := c.knownLocked(c.robotID)
	c.mu.Unlock()
	if keep {
		return nil
	}
	return c.SelectRobot(robots[0].ID)
}

// Pause sends Stop and marks the session paused.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
	c.zeroAxesLocked()
	c.submitLocked([]teleop.Command{teleop.Stop{}})
	c.logger.Infof("Session paused")
}

// Resume clears the paused flag, including after PowerOff. Nothing is resent.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.paused = false
	c.poweredOff = false
	c.mapper.Forget()
	c.logger.Infof("Session resumed")
}

// PowerOff sends EmergencyStop and pauses. Only Resume leaves this state.
func (c *Controller) PowerOff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
	c.poweredOff = true
	c.zeroAxesLocked()
	c.submitLocked([]teleop.Command{teleop.EmergencyStop{}})
	c.logger.Warnf("Power off requested, emergency stop sent")
}

// Paused reports whether the session is paused.
func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Controller) knownLocked(robotID string) bool {
	for _, r := range c.robots {
		if r.ID == robotID {
			return true
		}
	}
	return false
}

func (c *Controller) movingLocked() bool {
	return c.drag.Active() || c.throttle != 0 || c.steering != 0
}

func (c *Controller) zeroAxesLocked() {
	c.drag.Cancel()
	c.throttle, c.steering = 0, 0
	c.throttleReturn, c.steeringReturn = nil, nil
	c.pulse = teleop.Pulse{}
}

// submitLocked hands cmds to the sink in order. Sink errors are logged only;
// a stalled command surfaces through the connection status.
func (c *Controller) submitLocked(cmds []teleop.Command) {
	for _, cmd := range cmds {
		if err := c.sink.Submit(c.robotID, cmd); err != nil {
			c.logger.Errorf("Failed to submit %s: %v", cmd, err)
		}
	}
}
