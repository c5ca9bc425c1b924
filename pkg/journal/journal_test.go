package journal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/console/domain/connection"
	"github.com/open-teleop/console/domain/teleop"
	customlog "github.com/open-teleop/console/pkg/log"
	"github.com/open-teleop/console/pkg/processing"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), customlog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func result(id string, cmd teleop.Command, issued time.Time, err error) *processing.Result {
	return &processing.Result{
		Envelope: &processing.Envelope{
			ID:       id,
			RobotID:  "rb-01",
			Command:  cmd,
			Priority: processing.PriorityStandard,
			IssuedAt: issued,
		},
		Err:         err,
		CompletedAt: issued.Add(40 * time.Millisecond),
	}
}

func TestRecordCommandAndRecent(t *testing.T) {
	j := openTemp(t)
	j.SetSessionID("session-1")
	base := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, j.RecordCommand(result("a", teleop.Move{Speed: 0.4}, base, nil)))
	require.NoError(t, j.RecordCommand(result("b", teleop.ArmMove{Direction: teleop.ArmUp}, base.Add(time.Second), errors.New("robot unreachable"))))
	superseded := result("c", teleop.Move{Speed: 0.1}, base.Add(2*time.Second), nil)
	superseded.Superseded = true
	require.NoError(t, j.RecordCommand(superseded))

	entries, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "b", entries[0].ID)
	assert.Equal(t, "arm", entries[0].Kind)
	assert.JSONEq(t, `{"direction":"up"}`, entries[0].Payload)
	assert.False(t, entries[0].OK)
	assert.Equal(t, "robot unreachable", entries[0].Error)

	assert.Equal(t, "a", entries[1].ID)
	assert.Equal(t, "session-1", entries[1].SessionID)
	assert.True(t, entries[1].OK)
	assert.Empty(t, entries[1].Error)
	assert.JSONEq(t, `{"speed":0.4}`, entries[1].Payload)
	assert.Equal(t, base, entries[1].IssuedAt)
	assert.Equal(t, 40*time.Millisecond, entries[1].CompletedAt.Sub(entries[1].IssuedAt))

	limited, err := j.Recent(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecordConnectionOnlyOnChange(t *testing.T) {
	j := openTemp(t)
	at := time.UnixMilli(1_700_000_000_000)

	snaps := []connection.Snapshot{
		{RobotID: "rb-01", Status: connection.StatusConnecting, UpdatedAt: at},
		{RobotID: "rb-01", Status: connection.StatusConnected, UpdatedAt: at},
		{RobotID: "rb-01", Status: connection.StatusConnecting, UpdatedAt: at},
		{RobotID: "rb-01", Status: connection.StatusConnected, UpdatedAt: at},
		{RobotID: "rb-01", Status: connection.StatusScanning, LastError: "timeout", UpdatedAt: at},
		{RobotID: "rb-02", Status: connection.StatusScanning, UpdatedAt: at},
	}
	for _, s := range snaps {
		require.NoError(t, j.RecordConnection(s))
	}

	entries, err := j.RecentConnections(10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "rb-02", entries[0].RobotID)
	assert.Equal(t, "scanning", entries[1].Status)
	assert.Equal(t, "timeout", entries[1].Error)
	assert.Equal(t, "connected", entries[2].Status)
	assert.Equal(t, at, entries[2].At)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("", customlog.Nop())
	assert.Error(t, err)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, customlog.Nop())
	require.NoError(t, err)
	require.NoError(t, j.RecordCommand(result("a", teleop.Stop{}, time.Now(), nil)))
	require.NoError(t, j.Close())

	j, err = Open(path, customlog.Nop())
	require.NoError(t, err)
	defer j.Close()
	entries, err := j.Recent(5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "stop", entries[0].Kind)
	assert.JSONEq(t, `{}`, entries[0].Payload)
}
