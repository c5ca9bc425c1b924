package processing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/open-teleop/console/pkg/link"
	customlog "github.com/open-teleop/console/pkg/log"
)

// ResultHandler is a function that handles dispatch results
type ResultHandler func(result *Result)

// CommandProcessor delivers one envelope to the robot
type CommandProcessor func(ctx context.Context, env *Envelope) (link.Ack, error)

// StaleCheck reports whether an envelope has been overtaken by a newer command
type StaleCheck func(env *Envelope) bool

// ProcessingPool is a fixed set of workers draining one bounded queue.
// When the queue is full the oldest envelope is dropped.
type ProcessingPool struct {
	name          string
	workerCount   int
	logger        customlog.Logger
	queue         chan *Envelope
	running       bool
	wg            sync.WaitGroup
	mu            sync.Mutex
	processor     CommandProcessor
	resultHandler ResultHandler
	stale         StaleCheck
	queueSize     int
	metrics       *PoolMetrics
}

// PoolMetrics tracks metrics for a processing pool
type PoolMetrics struct {
	ProcessedCount    int64 `json:"processed"`
	ErrorCount        int64 `json:"errors"`
	QueuedCount       int64 `json:"queued"`
	DroppedCount      int64 `json:"dropped"`
	SupersededCount   int64 `json:"superseded"`
	LastProcessedTime int64 `json:"last_processed_ns"`
	ProcessingTimeAvg int64 `json:"avg_time_us"`
	ProcessingTimeMax int64 `json:"max_time_us"`
	mu                sync.Mutex
}

// NewProcessingPool creates a new processing pool
func NewProcessingPool(
	name string,
	workerCount int,
	queueSize int,
	logger customlog.Logger,
) *ProcessingPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &ProcessingPool{
		name:        name,
		workerCount: workerCount,
		queueSize:   queueSize,
		logger:      logger.WithField("pool", name),
		queue:       make(chan *Envelope, queueSize),
		metrics:     &PoolMetrics{},
	}
}

// SetProcessor sets the command processor function
func (p *ProcessingPool) SetProcessor(processor CommandProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processor = processor
}

// SetResultHandler sets the result handler function
func (p *ProcessingPool) SetResultHandler(handler ResultHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resultHandler = handler
}

// SetStaleCheck sets the check used to skip overtaken envelopes
func (p *ProcessingPool) SetStaleCheck(check StaleCheck) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stale = check
}

// Enqueue adds an envelope without blocking. A full queue loses its oldest
// envelope so the newest intent is kept. Returns false if the pool is stopped.
func (p *ProcessingPool) Enqueue(env *Envelope) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		p.logger.Warnf("Pool not running, discarding %s", env.Command)
		return false
	}

	p.metrics.mu.Lock()
	p.metrics.QueuedCount++
	p.metrics.mu.Unlock()

	// Retry until the envelope fits, evicting the oldest each round
	for {
		select {
		case p.queue <- env:
			return true
		default:
		}
		select {
		case old := <-p.queue:
			p.metrics.mu.Lock()
			p.metrics.DroppedCount++
			p.metrics.mu.Unlock()
			p.logger.Warnf("Queue full, dropped %s for %s", old.Command, old.RobotID)
		default:
		}
	}
}

// Start starts the pool workers
func (p *ProcessingPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.logger.Infof("Starting %s priority pool with %d workers", p.name, p.workerCount)

	// Start workers
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop closes the queue and waits for the workers to drain it
func (p *ProcessingPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	// Workers drain what is left, then exit
	close(p.queue)
	p.mu.Unlock()

	p.logger.Infof("Stopping %s priority pool", p.name)
	p.wg.Wait()
	p.logger.Infof("%s priority pool stopped", p.name)
	p.logMetrics()
}

func (p *ProcessingPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	p.logger.Debugf("Worker %d started", id)

	for env := range p.queue {
		// Get current handlers
		p.mu.Lock()
		processor := p.processor
		resultHandler := p.resultHandler
		stale := p.stale
		p.mu.Unlock()

		if processor == nil {
			p.logger.Errorf("No command processor set for %s pool", p.name)
			continue
		}

		result := &Result{Envelope: env}
		// Skip envelopes a newer command of the same group already replaced
		if stale != nil && stale(env) {
			p.skip(result)
		} else {
			startTime := time.Now()
			ack, err := processor(ctx, env)
			if errors.Is(err, ErrSuperseded) {
				// overtaken while waiting for its lane
				p.skip(result)
			} else {
				result.Ack, result.Err = ack, err
				result.CompletedAt = time.Now()
				p.record(time.Since(startTime).Microseconds(), result.Err)
				if result.Err != nil {
					p.logger.Errorf("Worker %d failed to send %s to %s: %v", id, env.Command, env.RobotID, result.Err)
				}
			}
		}

		// Report the result, sent or skipped
		if resultHandler != nil {
			resultHandler(result)
		}
	}

	p.logger.Debugf("Worker %d stopped", id)
}

func (p *ProcessingPool) skip(result *Result) {
	result.Superseded = true
	result.CompletedAt = time.Now()

	p.metrics.mu.Lock()
	p.metrics.SupersededCount++
	p.metrics.mu.Unlock()
	p.logger.Debugf("Skipping superseded %s for %s", result.Envelope.Command, result.Envelope.RobotID)
}

func (p *ProcessingPool) record(processingTime int64, err error) {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	p.metrics.ProcessedCount++
	p.metrics.LastProcessedTime = time.Now().UnixNano()

	if p.metrics.ProcessingTimeAvg == 0 {
		p.metrics.ProcessingTimeAvg = processingTime
	} else {
		// Simple moving average
		p.metrics.ProcessingTimeAvg = (p.metrics.ProcessingTimeAvg + processingTime) / 2
	}
	if processingTime > p.metrics.ProcessingTimeMax {
		p.metrics.ProcessingTimeMax = processingTime
	}
	if err != nil {
		p.metrics.ErrorCount++
	}
}

// GetMetrics returns a copy of the current metrics
func (p *ProcessingPool) GetMetrics() PoolMetrics {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	return PoolMetrics{
		ProcessedCount:    p.metrics.ProcessedCount,
		ErrorCount:        p.metrics.ErrorCount,
		QueuedCount:       p.metrics.QueuedCount,
		DroppedCount:      p.metrics.DroppedCount,
		SupersededCount:   p.metrics.SupersededCount,
		LastProcessedTime: p.metrics.LastProcessedTime,
		ProcessingTimeAvg: p.metrics.ProcessingTimeAvg,
		ProcessingTimeMax: p.metrics.ProcessingTimeMax,
	}
}

func (p *ProcessingPool) logMetrics() {
	m := p.GetMetrics()
	p.logger.Infof("%s pool metrics: processed=%d, errors=%d, dropped=%d, superseded=%d, avg_time=%dµs, max_time=%dµs",
		p.name, m.ProcessedCount, m.ErrorCount, m.DroppedCount, m.SupersededCount,
		m.ProcessingTimeAvg, m.ProcessingTimeMax)
}

// GetName returns the pool name
func (p *ProcessingPool) GetName() string {
	return p.name
}

// GetQueueLength returns the current length of the queue
func (p *ProcessingPool) GetQueueLength() int {
	return len(p.queue)
}

// GetQueueCapacity returns the capacity of the queue
func (p *ProcessingPool) GetQueueCapacity() int {
	return p.queueSize
}
