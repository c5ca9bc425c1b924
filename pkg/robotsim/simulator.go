// Package robotsim serves a simulated robot control surface over HTTP.
// It is used for local bench runs and as the peer in link tests.
package robotsim

import (
	"context"
	"math"
	"sync"
	"time"

	customlog "github.com/open-teleop/console/pkg/log"
)

// Status is the simulated robot state.
type Status string

const (
	StatusIdle          Status = "IDLE"
	StatusMoving        Status = "MOVING"
	StatusTurning       Status = "TURNING"
	StatusError         Status = "ERROR"
	StatusEmergencyStop Status = "EMERGENCY_STOP"
)

// Simulation constants.
const (
	MinBattery     = 10.0
	BatteryDrain   = 0.1
	ArmStepCm      = 5.0
	DefaultTick    = time.Second
	maxLinearSpeed = 0.5 // m/s at speed 1.0
	maxTurnRate    = 0.8 // rad/s at speed 1.0
	maxSpeed       = 1.2
)

// Position is the robot pose.
type Position struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// State is the JSON body of GET /status.
type State struct {
	Status       Status   `json:"status"`
	Position     Position `json:"position"`
	BatteryLevel float64  `json:"battery_level"`
	ArmHeight    float64  `json:"arm_height"`
	ArmDistance  float64  `json:"arm_distance"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

// Simulator holds one robot's state. It is safe for concurrent use.
type Simulator struct {
	mu       sync.Mutex
	id       string
	state    State
	drive    float64
	turn     float64
	offline  bool
	commands int
	logger   customlog.Logger
}

// New creates an idle robot with a full battery.
func New(id string, logger customlog.Logger) *Simulator {
	if logger == nil {
		logger = customlog.Nop()
	}
	return &Simulator{
		id:     id,
		state:  State{Status: StatusIdle, BatteryLevel: 100},
		logger: logger.WithField("robot", id),
	}
}

// ID returns the robot ID.
func (s *Simulator) ID() string {
	return s.id
}

// State returns a copy of the current state.
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Commands returns how many commands were accepted.
func (s *Simulator) Commands() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commands
}

// SetOffline makes every endpoint answer 503 while true.
func (s *Simulator) SetOffline(offline bool) {
	s.mu.Lock()
	s.offline = offline
	s.mu.Unlock()
}

func (s *Simulator) isOffline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offline
}

// SetBattery overrides the battery level.
func (s *Simulator) SetBattery(level float64) {
	s.mu.Lock()
	s.state.BatteryLevel = math.Max(0, math.Min(100, level))
	s.mu.Unlock()
}

// Fault puts the robot into ERROR with msg. An empty msg clears the fault.
func (s *Simulator) Fault(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg == "" {
		if s.state.Status == StatusError {
			s.state.Status = StatusIdle
		}
		s.state.ErrorMessage = ""
		return
	}
	s.halt()
	s.state.Status = StatusError
	s.state.ErrorMessage = msg
}

// Tick advances the simulation by dt.
func (s *Simulator) Tick(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.BatteryLevel > 0 {
		s.state.BatteryLevel = math.Max(0, s.state.BatteryLevel-BatteryDrain)
	}
	sec := dt.Seconds()
	p := &s.state.Position
	p.Theta += s.turn * maxTurnRate * sec
	p.X += s.drive * maxLinearSpeed * sec * math.Cos(p.Theta)
	p.Y += s.drive * maxLinearSpeed * sec * math.Sin(p.Theta)

	if s.state.BatteryLevel < MinBattery && (s.drive != 0 || s.turn != 0) {
		s.logger.Warnf("Battery low (%.1f), halting", s.state.BatteryLevel)
		s.halt()
		s.state.Status = StatusIdle
	}
}

// Run ticks until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTick
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(interval)
		}
	}
}

// Move sets the drive speed. Returns false when the safety check refuses motion.
func (s *Simulator) Move(speed float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if speed != 0 && !s.safe() {
		return false
	}
	s.drive = clampUnit(speed)
	s.settle()
	s.commands++
	return true
}

// Turn sets the turn rate. Turn(0) is always accepted.
func (s *Simulator) Turn(speed float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if speed != 0 && !s.safe() {
		return false
	}
	s.turn = clampUnit(speed)
	s.settle()
	s.commands++
	return true
}

// Stop halts drive and turn. It also acknowledges an emergency stop.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halt()
	if s.state.Status != StatusError {
		s.state.Status = StatusIdle
	}
	s.commands++
}

// EmergencyStop halts everything and latches until the next Stop.
func (s *Simulator) EmergencyStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halt()
	if s.state.Status != StatusError {
		s.state.Status = StatusEmergencyStop
	}
	s.commands++
	s.logger.Warnf("Emergency stop")
}

// Arm moves the arm one step. Returns false when refused or the direction is unknown.
func (s *Simulator) Arm(direction string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.safe() {
		return false
	}
	switch direction {
	case "up":
		s.state.ArmHeight += ArmStepCm
	case "down":
		s.state.ArmHeight = math.Max(0, s.state.ArmHeight-ArmStepCm)
	case "forward":
		s.state.ArmDistance += ArmStepCm
	case "backward":
		s.state.ArmDistance = math.Max(0, s.state.ArmDistance-ArmStepCm)
	default:
		return false
	}
	s.commands++
	return true
}

// safe requires s.mu held.
func (s *Simulator) safe() bool {
	if s.state.BatteryLevel < MinBattery {
		return false
	}
	return s.state.Status != StatusError && s.state.Status != StatusEmergencyStop
}

func (s *Simulator) halt() {
	s.drive, s.turn = 0, 0
}

func (s *Simulator) settle() {
	switch {
	case s.state.Status == StatusError || s.state.Status == StatusEmergencyStop:
		// latched until Stop or Fault("")
	case s.drive != 0:
		s.state.Status = StatusMoving
	case s.turn != 0:
		s.state.Status = StatusTurning
	default:
		s.state.Status = StatusIdle
	}
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-maxSpeed, math.Min(maxSpeed, v))
}
