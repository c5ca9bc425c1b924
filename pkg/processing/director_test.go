package processing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/console/domain/teleop"
	"github.com/open-teleop/console/pkg/config"
	"github.com/open-teleop/console/pkg/link"
	customlog "github.com/open-teleop/console/pkg/log"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []teleop.Command
	fail    error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeSender) SendCommand(ctx context.Context, robotID string, cmd teleop.Command) (link.Ack, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, cmd)
	if f.fail != nil {
		return link.Ack{}, f.fail
	}
	return link.Ack{StatusCode: 200}, nil
}

func (f *fakeSender) commands() []teleop.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]teleop.Command(nil), f.sent...)
}

type fakeMonitor struct {
	mu     sync.Mutex
	failed []string
	polls  int
}

func (m *fakeMonitor) CommandFailed(robotID string, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, robotID)
}

func (m *fakeMonitor) PollNow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
}

type capturePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (c *capturePublisher) PublishMessage(topic string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	return nil
}

func newDirector(t *testing.T, sender Sender, handler ResultHandler) *CommandDirector {
	t.Helper()
	logger := customlog.Nop()
	d := NewCommandDirector(sender, NewCommandRegistry(logger), logger, &DirectorOptions{DefaultQueueSize: 4})
	d.SetResultHandler(handler)
	d.Initialize(1, 1)
	d.Start(context.Background())
	t.Cleanup(d.Stop)
	return d
}

func TestSubmitDeliversAndReports(t *testing.T) {
	sender := &fakeSender{}
	monitor := &fakeMonitor{}
	pub := &capturePublisher{}
	h := NewConsoleResultHandler(customlog.Nop(), monitor, nil, pub)
	d := newDirector(t, sender, h.CreateHandlerFunc())

	require.NoError(t, d.Submit("rb-01", teleop.ArmMove{Direction: teleop.ArmUp}))
	assert.Eventually(t, func() bool {
		monitor.mu.Lock()
		defer monitor.mu.Unlock()
		return monitor.polls == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []teleop.Command{teleop.ArmMove{Direction: teleop.ArmUp}}, sender.commands())
	pub.mu.Lock()
	assert.Equal(t, []string{TopicCommand}, pub.topics)
	pub.mu.Unlock()
}

func TestFailedSendRegressesConnection(t *testing.T) {
	sender := &fakeSender{fail: &link.Error{Kind: link.ErrTransport, Op: "send", Robot: "rb-02"}}
	monitor := &fakeMonitor{}
	h := NewConsoleResultHandler(customlog.Nop(), monitor, nil, nil)
	d := newDirector(t, sender, h.CreateHandlerFunc())

	require.NoError(t, d.Submit("rb-02", teleop.Move{Speed: 0.4}))
	assert.Eventually(t, func() bool {
		monitor.mu.Lock()
		defer monitor.mu.Unlock()
		return len(monitor.failed) == 1 && monitor.failed[0] == "rb-02"
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return d.GetPoolMetrics()[PriorityStandard].ErrorCount == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSupersededCommandsAreSkipped(t *testing.T) {
	sender := &fakeSender{entered: make(chan struct{}, 4), release: make(chan struct{})}
	var mu sync.Mutex
	var results []*Result
	d := newDirector(t, sender, func(r *Result) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, r)
	})

	// the first move occupies the single worker, the next two wait in the queue
	require.NoError(t, d.Submit("rb-01", teleop.Move{Speed: 0.2}))
	<-sender.entered
	require.NoError(t, d.Submit("rb-01", teleop.Move{Speed: 0.3}))
	require.NoError(t, d.Submit("rb-01", teleop.Move{Speed: 0.4}))
	close(sender.release)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) == 3
	}, time.Second, 5*time.Millisecond)

	sent := sender.commands()
	assert.Equal(t, teleop.Move{Speed: 0.4}, sent[len(sent)-1])
	assert.NotContains(t, sent, teleop.Move{Speed: 0.3})
	assert.Equal(t, int64(1), d.GetPoolMetrics()[PriorityStandard].SupersededCount)
}

func TestStopsRouteToHighPool(t *testing.T) {
	sender := &fakeSender{}
	d := newDirector(t, sender, nil)
	require.NoError(t, d.Submit("rb-01", teleop.EmergencyStop{}))
	require.NoError(t, d.Submit("rb-01", teleop.Stop{}))
	assert.Eventually(t, func() bool {
		return d.GetPoolMetrics()[PriorityHigh].ProcessedCount == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), d.GetPoolMetrics()[PriorityStandard].QueuedCount)

	stats := d.Registry().GetKindStats()
	assert.Equal(t, int64(1), stats["emergency_stop"]["count"])
}

func TestSubmitAfterStop(t *testing.T) {
	d := newDirector(t, &fakeSender{}, nil)
	d.Stop()
	assert.True(t, errors.Is(d.Submit("rb-01", teleop.Stop{}), ErrDirectorStopped))
}

func TestFullQueueDropsOldest(t *testing.T) {
	pool := NewProcessingPool("TEST", 1, 2, customlog.Nop())
	pool.running = true // accept envelopes without workers draining them

	reg := NewCommandRegistry(customlog.Nop())
	for _, arm := range []teleop.ArmDirection{teleop.ArmUp, teleop.ArmDown, teleop.ArmForward} {
		require.True(t, pool.Enqueue(reg.Issue("rb-01", teleop.ArmMove{Direction: arm})))
	}

	assert.Equal(t, 2, pool.GetQueueLength())
	assert.Equal(t, int64(1), pool.GetMetrics().DroppedCount)
	first := <-pool.queue
	assert.Equal(t, teleop.ArmMove{Direction: teleop.ArmDown}, first.Command)
}

func TestRegistryPriorityOverrides(t *testing.T) {
	reg := NewCommandRegistry(customlog.Nop())
	reg.LoadFromConfig(&config.Config{CommandPriorities: map[string]string{
		"arm":  "high",
		"stop": "standard",
		"warp": "HIGH",
		"move": "urgent",
	}})

	assert.Equal(t, PriorityHigh, reg.GetPriority(teleop.KindArm))
	assert.Equal(t, PriorityHigh, reg.GetPriority(teleop.KindStop))
	assert.Equal(t, PriorityStandard, reg.GetPriority(teleop.KindMove))
}

func TestEmergencyStopSupersedesMotion(t *testing.T) {
	reg := NewCommandRegistry(customlog.Nop())
	move := reg.Issue("rb-01", teleop.Move{Speed: 1})
	turn := reg.Issue("rb-01", teleop.Turn{Speed: 1})
	other := reg.Issue("rb-02", teleop.Move{Speed: 1})
	arm := reg.Issue("rb-01", teleop.ArmMove{Direction: teleop.ArmUp})
	reg.Issue("rb-01", teleop.EmergencyStop{})

	assert.True(t, reg.Superseded(move))
	assert.True(t, reg.Superseded(turn))
	assert.False(t, reg.Superseded(other))
	assert.False(t, reg.Superseded(arm))
}

func TestSameGroupSendsNeverOverlap(t *testing.T) {
	sender := &fakeSender{entered: make(chan struct{}, 4), release: make(chan struct{})}
	logger := customlog.Nop()
	d := NewCommandDirector(sender, NewCommandRegistry(logger), logger, &DirectorOptions{DefaultQueueSize: 4})
	d.Initialize(1, 3)
	d.Start(context.Background())
	t.Cleanup(d.Stop)

	require.NoError(t, d.Submit("rb-01", teleop.Turn{Speed: 0.9}))
	<-sender.entered
	// the release lands on a free worker while the first turn is in flight
	require.NoError(t, d.Submit("rb-01", teleop.Turn{}))
	select {
	case <-sender.entered:
		t.Fatal("second turn sent while the first was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	sender.release <- struct{}{}
	<-sender.entered
	sender.release <- struct{}{}

	assert.Eventually(t, func() bool { return len(sender.commands()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []teleop.Command{teleop.Turn{Speed: 0.9}, teleop.Turn{}}, sender.commands())
}

func TestStopWaitsForInFlightMoveAcrossPools(t *testing.T) {
	sender := &fakeSender{entered: make(chan struct{}, 4), release: make(chan struct{})}
	logger := customlog.Nop()
	d := NewCommandDirector(sender, NewCommandRegistry(logger), logger, &DirectorOptions{DefaultQueueSize: 4})
	d.Initialize(1, 2)
	d.Start(context.Background())
	t.Cleanup(d.Stop)

	require.NoError(t, d.Submit("rb-01", teleop.Move{Speed: 0.7}))
	<-sender.entered
	require.NoError(t, d.Submit("rb-01", teleop.Stop{}))
	select {
	case <-sender.entered:
		t.Fatal("stop sent while the move was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	sender.release <- struct{}{}
	<-sender.entered
	sender.release <- struct{}{}

	assert.Eventually(t, func() bool { return len(sender.commands()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []teleop.Command{teleop.Move{Speed: 0.7}, teleop.Stop{}}, sender.commands())
}

func TestOvertakenWhileWaitingForLane(t *testing.T) {
	sender := &fakeSender{entered: make(chan struct{}, 4), release: make(chan struct{})}
	var mu sync.Mutex
	var superseded []teleop.Command
	logger := customlog.Nop()
	d := NewCommandDirector(sender, NewCommandRegistry(logger), logger, &DirectorOptions{DefaultQueueSize: 4})
	d.SetResultHandler(func(r *Result) {
		if r.Superseded {
			mu.Lock()
			superseded = append(superseded, r.Envelope.Command)
			mu.Unlock()
		}
	})
	d.Initialize(1, 3)
	d.Start(context.Background())
	t.Cleanup(d.Stop)

	require.NoError(t, d.Submit("rb-01", teleop.Turn{Speed: 0.9}))
	<-sender.entered
	require.NoError(t, d.Submit("rb-01", teleop.Turn{Speed: 0.5}))
	// both later turns are waiting on the lane before the newest is issued
	assert.Eventually(t, func() bool {
		return d.GetPoolMetrics()[PriorityStandard].QueuedCount == 2 && d.standardPool.GetQueueLength() == 0
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, d.Submit("rb-01", teleop.Turn{}))

	sender.release <- struct{}{}
	<-sender.entered
	sender.release <- struct{}{}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(superseded) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []teleop.Command{teleop.Turn{Speed: 0.9}, teleop.Turn{}}, sender.commands())
	assert.Equal(t, []teleop.Command{teleop.Turn{Speed: 0.5}}, superseded)
}
