package processing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/open-teleop/console/domain/teleop"
	"github.com/open-teleop/console/pkg/link"
	customlog "github.com/open-teleop/console/pkg/log"
)

var (
	// ErrDirectorStopped is returned when submitting to a director that is not running
	ErrDirectorStopped = errors.New("command director is not running")

	// ErrSuperseded is returned for an envelope overtaken while waiting for its lane
	ErrSuperseded = errors.New("command superseded")
)

// Sender is the part of link.Client the director needs
type Sender interface {
	SendCommand(ctx context.Context, robotID string, cmd teleop.Command) (link.Ack, error)
}

// CommandDirector routes commands to the HIGH or STANDARD pool by kind
type CommandDirector struct {
	logger           customlog.Logger
	highPriorityPool *ProcessingPool
	standardPool     *ProcessingPool
	registry         *CommandRegistry
	sender           Sender
	lanes            *laneSet
	resultHandler    ResultHandler
	running          bool
	mu               sync.RWMutex
	cancel           context.CancelFunc

	defaultQueueSize int
}

// DirectorOptions holds configuration options for the CommandDirector
type DirectorOptions struct {
	DefaultQueueSize int
}

// NewCommandDirector creates a new command director
func NewCommandDirector(
	sender Sender,
	registry *CommandRegistry,
	logger customlog.Logger,
	options *DirectorOptions,
) *CommandDirector {
	if options == nil {
		options = &DirectorOptions{DefaultQueueSize: 32}
	}
	return &CommandDirector{
		logger:           logger,
		registry:         registry,
		sender:           sender,
		lanes:            newLaneSet(),
		defaultQueueSize: options.DefaultQueueSize,
	}
}

// Initialize creates the processing pools with the given worker counts
func (d *CommandDirector) Initialize(highWorkers, standardWorkers int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.highPriorityPool = NewProcessingPool(PriorityHigh, highWorkers, d.defaultQueueSize, d.logger)
	d.standardPool = NewProcessingPool(PriorityStandard, standardWorkers, d.defaultQueueSize, d.logger)

	for _, pool := range []*ProcessingPool{d.highPriorityPool, d.standardPool} {
		pool.SetProcessor(d.send)
		pool.SetStaleCheck(d.registry.Superseded)
		if d.resultHandler != nil {
			pool.SetResultHandler(d.resultHandler)
		}
	}

	d.logger.Infof("Command Director initialized with pools: HIGH(%d), STANDARD(%d)",
		highWorkers, standardWorkers)
}

// SetResultHandler sets the result handler function for all pools
func (d *CommandDirector) SetResultHandler(handler ResultHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.resultHandler = handler
	if d.highPriorityPool != nil {
		d.highPriorityPool.SetResultHandler(handler)
	}
	if d.standardPool != nil {
		d.standardPool.SetResultHandler(handler)
	}
}

// send delivers env. Motion commands wait for their robot's lane so that
// requests of one motion group never overlap, whichever pool runs them.
func (d *CommandDirector) send(ctx context.Context, env *Envelope) (link.Ack, error) {
	group := motionGroup(env.Command)
	if group == "" {
		return d.sender.SendCommand(ctx, env.RobotID, env.Command)
	}

	release, err := d.lanes.acquire(ctx, supersedeKey{env.RobotID, group})
	if err != nil {
		return link.Ack{}, err
	}
	defer release()

	// A newer command of the group may have been issued while we waited
	if d.registry.Superseded(env) {
		return link.Ack{}, ErrSuperseded
	}
	return d.sender.SendCommand(ctx, env.RobotID, env.Command)
}

// laneSet holds one single-slot semaphore per robot and motion group.
type laneSet struct {
	mu    sync.Mutex
	lanes map[supersedeKey]chan struct{}
}

func newLaneSet() *laneSet {
	return &laneSet{lanes: make(map[supersedeKey]chan struct{})}
}

// acquire blocks until the lane for key is free and returns its release.
func (l *laneSet) acquire(ctx context.Context, key supersedeKey) (func(), error) {
	l.mu.Lock()
	lane, ok := l.lanes[key]
	if !ok {
		lane = make(chan struct{}, 1)
		l.lanes[key] = lane
	}
	l.mu.Unlock()

	select {
	case lane <- struct{}{}:
		return func() { <-lane }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Submit queues cmd for robotID. It never waits on the robot.
func (d *CommandDirector) Submit(robotID string, cmd teleop.Command) error {
	d.mu.RLock()
	running := d.running
	high, standard := d.highPriorityPool, d.standardPool
	d.mu.RUnlock()

	if !running {
		return ErrDirectorStopped
	}

	env := d.registry.Issue(robotID, cmd)
	pool := standard
	if env.Priority == PriorityHigh {
		pool = high
	}
	d.logger.Debugf("Routing %s for %s to %s pool", cmd, robotID, env.Priority)

	if !pool.Enqueue(env) {
		return fmt.Errorf("failed to enqueue %s (priority: %s): %w", cmd, env.Priority, ErrDirectorStopped)
	}
	return nil
}

// Start starts all processing pools
func (d *CommandDirector) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	if d.highPriorityPool == nil {
		panic("CommandDirector.Start called before Initialize")
	}

	ctx, d.cancel = context.WithCancel(ctx)
	d.running = true
	d.logger.Infof("Starting Command Director")
	d.highPriorityPool.Start(ctx)
	d.standardPool.Start(ctx)
}

// Stop drains and stops all processing pools
func (d *CommandDirector) Stop() {
	d.mu.Lock()
	running := d.running
	d.running = false
	cancel := d.cancel
	d.mu.Unlock()

	if !running {
		return
	}

	d.logger.Infof("Stopping Command Director")
	d.highPriorityPool.Stop()
	d.standardPool.Stop()
	cancel()
	d.logger.Infof("Command Director stopped")
}

// GetPoolMetrics returns metrics for all pools
func (d *CommandDirector) GetPoolMetrics() map[string]PoolMetrics {
	d.mu.RLock()
	defer d.mu.RUnlock()

	metrics := make(map[string]PoolMetrics)
	if d.highPriorityPool != nil {
		metrics[PriorityHigh] = d.highPriorityPool.GetMetrics()
	}
	if d.standardPool != nil {
		metrics[PriorityStandard] = d.standardPool.GetMetrics()
	}
	return metrics
}

// Registry returns the command registry
func (d *CommandDirector) Registry() *CommandRegistry {
	return d.registry
}
