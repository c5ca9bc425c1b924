package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/console/pkg/link"
)

type pollResult struct {
	tel link.Telemetry
	err error
}

// gatedPoller blocks every poll until the test releases it.
type gatedPoller struct {
	mu      sync.Mutex
	calls   []string
	started chan string
	gates   map[string]chan pollResult
}

func newGatedPoller() *gatedPoller {
	return &gatedPoller{started: make(chan string, 16), gates: make(map[string]chan pollResult)}
}

func (p *gatedPoller) gate(robotID string) chan pollResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.gates[robotID]
	if !ok {
		g = make(chan pollResult, 4)
		p.gates[robotID] = g
	}
	return g
}

func (p *gatedPoller) PollStatus(ctx context.Context, robotID string) (link.Telemetry, error) {
	p.mu.Lock()
	p.calls = append(p.calls, robotID)
	p.mu.Unlock()
	p.started <- robotID
	select {
	case r := <-p.gate(robotID):
		return r.tel, r.err
	case <-ctx.Done():
		return link.Telemetry{}, ctx.Err()
	}
}

// funcPoller answers immediately.
type funcPoller func(robotID string) (link.Telemetry, error)

func (f funcPoller) PollStatus(_ context.Context, robotID string) (link.Telemetry, error) {
	return f(robotID)
}

func TestPollSuccessConnects(t *testing.T) {
	m := NewMachine(funcPoller(func(string) (link.Telemetry, error) {
		return link.Telemetry{State: "idle", Battery: 80}, nil
	}), "rb-01", 0, nil)
	assert.Equal(t, StatusScanning, m.Status())

	s := m.Poll(context.Background())
	assert.Equal(t, StatusConnected, s.Status)
	require.NotNil(t, s.Telemetry)
	assert.Equal(t, link.Telemetry{State: "idle", Battery: 80}, *s.Telemetry)
	assert.True(t, s.Connected())
}

func TestPollFailureClearsTelemetry(t *testing.T) {
	fail := false
	m := NewMachine(funcPoller(func(string) (link.Telemetry, error) {
		if fail {
			return link.Telemetry{}, &link.Error{Kind: link.ErrTransport, Op: "poll", Robot: "rb-01"}
		}
		return link.Telemetry{State: "idle", Battery: 50}, nil
	}), "rb-01", 0, nil)

	require.Equal(t, StatusConnected, m.Poll(context.Background()).Status)
	fail = true
	s := m.Poll(context.Background())
	assert.Equal(t, StatusScanning, s.Status)
	assert.Nil(t, s.Telemetry)
	assert.Contains(t, s.LastError, "transport error")
}

func TestConnectingWhilePollInFlight(t *testing.T) {
	p := newGatedPoller()
	m := NewMachine(p, "rb-01", 0, nil)

	done := make(chan Snapshot)
	go func() { done <- m.Poll(context.Background()) }()
	<-p.started
	assert.Equal(t, StatusConnecting, m.Status())

	p.gate("rb-01") <- pollResult{tel: link.Telemetry{State: "idle"}}
	assert.Equal(t, StatusConnected, (<-done).Status)
}

func TestResetDiscardsInFlightPoll(t *testing.T) {
	p := newGatedPoller()
	m := NewMachine(p, "rb-01", 0, nil)

	done := make(chan Snapshot)
	go func() { done <- m.Poll(context.Background()) }()
	require.Equal(t, "rb-01", <-p.started)

	m.Reset("rb-02")
	assert.Equal(t, StatusScanning, m.Status())

	// robot A answers late with good news
	p.gate("rb-01") <- pollResult{tel: link.Telemetry{State: "idle", Battery: 99}}
	<-done

	s := m.Snapshot()
	assert.Equal(t, "rb-02", s.RobotID)
	assert.Equal(t, StatusScanning, s.Status)
	assert.Nil(t, s.Telemetry)
}

func TestCommandFailureRegressesImmediately(t *testing.T) {
	m := NewMachine(funcPoller(func(string) (link.Telemetry, error) {
		return link.Telemetry{State: "idle"}, nil
	}), "rb-01", time.Hour, nil)
	require.Equal(t, StatusConnected, m.Poll(context.Background()).Status)

	m.CommandFailed("rb-01", errors.New("refused"))
	s := m.Snapshot()
	assert.Equal(t, StatusScanning, s.Status)
	assert.Nil(t, s.Telemetry)
	assert.Equal(t, "refused", s.LastError)
}

func TestCommandFailureForOtherRobotIgnored(t *testing.T) {
	m := NewMachine(funcPoller(func(string) (link.Telemetry, error) {
		return link.Telemetry{State: "idle"}, nil
	}), "rb-02", 0, nil)
	m.Poll(context.Background())

	m.CommandFailed("rb-01", errors.New("late failure"))
	assert.Equal(t, StatusConnected, m.Status())
}

func TestNoRobotStaysIdle(t *testing.T) {
	p := newGatedPoller()
	m := NewMachine(p, "", 0, nil)
	assert.Equal(t, StatusIdle, m.Poll(context.Background()).Status)
	assert.Empty(t, p.calls)
}

func TestLoopPollsOnCadence(t *testing.T) {
	var mu sync.Mutex
	count := 0
	m := NewMachine(funcPoller(func(string) (link.Telemetry, error) {
		mu.Lock()
		count++
		mu.Unlock()
		return link.Telemetry{State: "idle"}, nil
	}), "rb-01", 20*time.Millisecond, nil)

	m.Start(context.Background())
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 3
	}, 2*time.Second, 5*time.Millisecond)
	m.Stop()
	assert.Equal(t, StatusConnected, m.Status())

	mu.Lock()
	after := count
	mu.Unlock()
	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, after, count, "no polls after Stop")
	mu.Unlock()
}

func TestResetPollsImmediately(t *testing.T) {
	p := newGatedPoller()
	m := NewMachine(p, "rb-01", time.Hour, nil)
	m.Start(context.Background())
	defer m.Stop()

	require.Equal(t, "rb-01", <-p.started)
	m.Reset("rb-03")

	select {
	case id := <-p.started:
		assert.Equal(t, "rb-03", id)
	case <-time.After(2 * time.Second):
		t.Fatal("reset did not start a fresh poll")
	}

	p.gate("rb-03") <- pollResult{tel: link.Telemetry{State: "idle", Battery: 61}}
	assert.Eventually(t, func() bool { return m.Status() == StatusConnected }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 61.0, m.Snapshot().Telemetry.Battery)
}

func TestPollNowCoalescesWhileInFlight(t *testing.T) {
	p := newGatedPoller()
	m := NewMachine(p, "rb-01", time.Hour, nil)
	m.Start(context.Background())
	defer m.Stop()

	require.Equal(t, "rb-01", <-p.started)
	for i := 0; i < 5; i++ {
		m.PollNow()
	}
	p.gate("rb-01") <- pollResult{tel: link.Telemetry{State: "idle", Battery: 70}}

	// exactly one follow-up for the five requests
	select {
	case <-p.started:
	case <-time.After(2 * time.Second):
		t.Fatal("no follow-up poll after the in-flight one finished")
	}
	p.gate("rb-01") <- pollResult{tel: link.Telemetry{State: "idle", Battery: 69}}
	select {
	case <-p.started:
		t.Fatal("requests were not coalesced")
	case <-time.After(50 * time.Millisecond):
	}

	assert.Eventually(t, func() bool { return m.Status() == StatusConnected }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 69.0, m.Snapshot().Telemetry.Battery)
}

func TestRepeatedPollNowKeepsTelemetryFlowing(t *testing.T) {
	var mu sync.Mutex
	inFlight, maxInFlight, calls := 0, 0, 0
	m := NewMachine(funcPoller(func(string) (link.Telemetry, error) {
		mu.Lock()
		inFlight++
		calls++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		battery := float64(calls)
		mu.Unlock()

		time.Sleep(30 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return link.Telemetry{State: "moving", Battery: battery}, nil
	}), "rb-01", time.Hour, nil)

	var connected atomic.Int32
	m.Subscribe(func(s Snapshot) {
		if s.Status == StatusConnected {
			connected.Add(1)
		}
	})
	m.Start(context.Background())
	defer m.Stop()
	require.Eventually(t, func() bool { return connected.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)

	// one ack-triggered poll every 10ms, faster than a poll completes
	before := connected.Load()
	for i := 0; i < 25; i++ {
		m.PollNow()
		time.Sleep(10 * time.Millisecond)
	}
	assert.GreaterOrEqual(t, connected.Load()-before, int32(3))
	assert.Eventually(t, func() bool { return m.Status() == StatusConnected }, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxInFlight)
}

func TestSubscribersSeeTransitions(t *testing.T) {
	m := NewMachine(funcPoller(func(string) (link.Telemetry, error) {
		return link.Telemetry{State: "idle"}, nil
	}), "rb-01", 0, nil)

	var seen []Status
	unsubscribe := m.Subscribe(func(s Snapshot) { seen = append(seen, s.Status) })
	m.Poll(context.Background())
	m.CommandFailed("rb-01", nil)
	unsubscribe()
	m.Poll(context.Background())

	assert.Equal(t, []Status{StatusConnecting, StatusConnected, StatusScanning}, seen)
}
