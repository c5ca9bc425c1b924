package connection

import (
	"context"
	"sync"
	"time"

	"github.com/open-teleop/console/pkg/link"
	"github.com/open-teleop/console/pkg/log"
)

// DefaultPollInterval is the fixed poll cadence.
const DefaultPollInterval = 1200 * time.Millisecond

// Poller is the part of link.Client the machine needs.
type Poller interface {
	PollStatus(ctx context.Context, robotID string) (link.Telemetry, error)
}

// Machine owns the connection status and the latest telemetry.
//
// Every poll is tagged with the epoch current when it started. Selecting a
// robot, a command failure and Stop bump the epoch, so a result is applied
// only if none of those happened since its poll began. A result is also
// dropped when a newer poll was started after it.
//
// The loop keeps at most one poll in flight per epoch. Requests arriving
// while one is running are folded into a single follow-up poll.
type Machine struct {
	poller   Poller
	interval time.Duration
	logger   log.Logger
	now      func() time.Time

	mu        sync.Mutex
	robotID   string
	status    Status
	settled   Status
	telemetry *link.Telemetry
	lastErr   string
	updatedAt time.Time
	epoch     uint64
	latest    uint64
	seq       uint64
	listeners map[int]Listener
	nextID    int

	running bool
	polling bool
	pending bool
	runCtx  context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	wake    chan struct{}
	polls   sync.WaitGroup
}

// NewMachine creates a machine for robotID. It does not poll until Start.
func NewMachine(poller Poller, robotID string, interval time.Duration, logger log.Logger) *Machine {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = log.Nop()
	}
	m := &Machine{
		poller:    poller,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
		robotID:   robotID,
		listeners: make(map[int]Listener),
		wake:      make(chan struct{}, 1),
	}
	m.status = m.restingStatus()
	m.settled = m.status
	m.updatedAt = m.now()
	return m
}

// Interval returns the poll cadence.
func (m *Machine) Interval() time.Duration {
	return m.interval
}

// Start launches the poll loop. The first poll starts immediately.
func (m *Machine) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.runCtx, m.cancel = context.WithCancel(ctx)
	m.running = true
	m.done = make(chan struct{})
	runCtx, done := m.runCtx, m.done
	m.mu.Unlock()

	m.logger.Infof("Connection monitor started (interval %s)", m.interval)
	go m.loop(runCtx, done)
}

// Stop ends the poll loop and waits for in-flight polls. Their results are
// discarded.
func (m *Machine) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.bumpLocked()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
	m.polls.Wait()
	m.logger.Infof("Connection monitor stopped")
}

func (m *Machine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.spawn()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.spawn()
		case <-m.wake:
			ticker.Reset(m.interval)
			m.spawn()
		}
	}
}

// spawn starts an asynchronous poll if the loop is running. If a poll of
// the current epoch is already in flight it only marks a follow-up.
func (m *Machine) spawn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	if m.polling {
		m.pending = true
		return
	}
	m.polling = true
	ctx, epoch := m.runCtx, m.epoch
	m.polls.Add(1)
	go func() {
		defer m.polls.Done()
		m.Poll(ctx)
		m.pollDone(epoch)
	}()
}

// pollDone releases the in-flight slot taken by spawn and starts the
// follow-up poll if one was requested meanwhile.
func (m *Machine) pollDone(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch {
		// the slot was already released by the bump
		m.mu.Unlock()
		return
	}
	m.polling = false
	again := m.pending && m.running
	m.pending = false
	m.mu.Unlock()

	if again {
		m.spawn()
	}
}

// PollNow asks for an out-of-band poll without waiting for the next tick.
// While a poll is in flight the request is coalesced into one follow-up.
func (m *Machine) PollNow() {
	m.spawn()
}

// Poll performs one poll cycle synchronously and returns the resulting state.
func (m *Machine) Poll(ctx context.Context) Snapshot {
	m.mu.Lock()
	robotID := m.robotID
	if robotID == "" {
		s := m.snapshotLocked()
		m.mu.Unlock()
		return s
	}
	m.latest++
	epoch, id := m.epoch, m.latest
	m.setLocked(StatusConnecting, m.telemetry, m.lastErr)
	s := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(s)

	tel, err := m.poller.PollStatus(ctx, robotID)

	m.mu.Lock()
	if epoch != m.epoch || id != m.latest {
		s = m.snapshotLocked()
		m.mu.Unlock()
		m.logger.WithField("robot", robotID).Debugf("Discarding superseded poll result")
		return s
	}
	prev := m.settled
	if err != nil {
		m.setLocked(StatusScanning, nil, err.Error())
	} else {
		m.setLocked(StatusConnected, &tel, "")
	}
	s = m.snapshotLocked()
	m.mu.Unlock()

	m.logTransition(prev, s)
	m.notify(s)
	return s
}

// Reset selects robotID. The machine drops to scanning at once, forgets the
// telemetry, discards any in-flight result and polls again immediately.
func (m *Machine) Reset(robotID string) {
	m.mu.Lock()
	m.robotID = robotID
	m.bumpLocked()
	m.setLocked(m.restingStatus(), nil, "")
	s := m.snapshotLocked()
	running := m.running
	m.mu.Unlock()

	m.logger.WithField("robot", robotID).Infof("Robot selected, rescanning")
	m.notify(s)
	if running {
		select {
		case m.wake <- struct{}{}:
		default:
		}
	}
}

// CommandFailed regresses to scanning after a failed send to robotID.
// Failures for a robot that is no longer selected are ignored.
func (m *Machine) CommandFailed(robotID string, cause error) {
	m.mu.Lock()
	if robotID != m.robotID || robotID == "" {
		m.mu.Unlock()
		return
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	prev := m.settled
	m.bumpLocked()
	m.setLocked(StatusScanning, nil, msg)
	s := m.snapshotLocked()
	m.mu.Unlock()

	m.logTransition(prev, s)
	m.notify(s)
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Status returns the current status.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// RobotID returns the robot being monitored.
func (m *Machine) RobotID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.robotID
}

// Subscribe registers l for state changes and returns a function removing it.
// Listeners run on the goroutine that caused the change and must not block.
func (m *Machine) Subscribe(l Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// bumpLocked invalidates in-flight polls and frees the poll slot for a
// fresh one.
func (m *Machine) bumpLocked() {
	m.epoch++
	m.polling = false
	m.pending = false
}

func (m *Machine) restingStatus() Status {
	if m.robotID == "" {
		return StatusIdle
	}
	return StatusScanning
}

func (m *Machine) setLocked(status Status, tel *link.Telemetry, lastErr string) {
	m.status = status
	if status != StatusConnecting {
		m.settled = status
	}
	m.telemetry = tel
	m.lastErr = lastErr
	m.updatedAt = m.now()
	m.seq++
}

func (m *Machine) snapshotLocked() Snapshot {
	var tel *link.Telemetry
	if m.telemetry != nil {
		copied := *m.telemetry
		tel = &copied
	}
	return Snapshot{
		Seq:       m.seq,
		RobotID:   m.robotID,
		Status:    m.status,
		Telemetry: tel,
		LastError: m.lastErr,
		UpdatedAt: m.updatedAt,
	}
}

func (m *Machine) notify(s Snapshot) {
	m.mu.Lock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()
	for _, l := range listeners {
		l(s)
	}
}

func (m *Machine) logTransition(prev Status, s Snapshot) {
	logger := m.logger.WithField("robot", s.RobotID)
	switch {
	case s.Status == StatusConnected && prev != StatusConnected:
		logger.Infof("Robot connected (battery %.1f)", s.Telemetry.Battery)
	case s.Status == StatusScanning && prev == StatusConnected:
		logger.Warnf("Link lost: %s", s.LastError)
	case s.Status == StatusScanning:
		logger.Debugf("Robot unreachable: %s", s.LastError)
	}
}
