// Package journal records operator commands and link transitions in a local
// SQLite database.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/open-teleop/console/domain/connection"
	"github.com/open-teleop/console/pkg/link"
	customlog "github.com/open-teleop/console/pkg/log"
	"github.com/open-teleop/console/pkg/processing"
)

const schema = `
	CREATE TABLE IF NOT EXISTS command_log (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		robot_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		payload TEXT,
		ok INTEGER NOT NULL,
		error TEXT,
		issued_at INTEGER NOT NULL,
		completed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_command_log_issued ON command_log (issued_at);
	CREATE TABLE IF NOT EXISTS connection_log (
		log_id INTEGER PRIMARY KEY AUTOINCREMENT,
		robot_id TEXT,
		status TEXT NOT NULL,
		error TEXT,
		at INTEGER NOT NULL
	);
`

// CommandEntry is one journaled command
type CommandEntry struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	RobotID     string    `json:"robot_id"`
	Kind        string    `json:"kind"`
	Payload     string    `json:"payload"`
	OK          bool      `json:"ok"`
	Error       string    `json:"error,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// ConnectionEntry is one journaled link transition
type ConnectionEntry struct {
	RobotID string    `json:"robot_id"`
	Status  string    `json:"status"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Journal is the operator action log
type Journal struct {
	db     *sql.DB
	logger customlog.Logger

	mu        sync.Mutex
	sessionID string
	lastRobot string
	lastState connection.Status
}

// Open creates or opens the journal at path
func Open(path string, logger customlog.Logger) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path cannot be empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// a single connection serialises writers
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	logger.Infof("Journal opened at %s", path)
	return &Journal{db: db, logger: logger}, nil
}

// Close closes the database
func (j *Journal) Close() error {
	return j.db.Close()
}

// SetSessionID tags subsequent command entries
func (j *Journal) SetSessionID(id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sessionID = id
}

// RecordCommand stores a dispatch result. Superseded results are skipped.
func (j *Journal) RecordCommand(result *processing.Result) error {
	if result == nil || result.Envelope == nil || result.Superseded {
		return nil
	}
	env := result.Envelope

	_, body := link.Route(env.Command)
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	var errText sql.NullString
	if result.Err != nil {
		errText = sql.NullString{String: result.Err.Error(), Valid: true}
	}

	ok := 0
	if result.OK() {
		ok = 1
	}

	j.mu.Lock()
	sessionID := j.sessionID
	j.mu.Unlock()

	_, err = j.db.Exec(`INSERT INTO command_log
		(id, session_id, robot_id, kind, payload, ok, error, issued_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		env.ID, sessionID, env.RobotID, string(env.Command.Kind()), string(payload),
		ok, errText, env.IssuedAt.UnixMilli(), result.CompletedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert command %s: %w", env.ID, err)
	}
	return nil
}

// RecordConnection stores a snapshot when the settled link status changes.
// In-flight polls are not recorded.
func (j *Journal) RecordConnection(s connection.Snapshot) error {
	if s.Status == connection.StatusConnecting {
		return nil
	}
	j.mu.Lock()
	if s.RobotID == j.lastRobot && s.Status == j.lastState {
		j.mu.Unlock()
		return nil
	}
	j.lastRobot, j.lastState = s.RobotID, s.Status
	j.mu.Unlock()

	at := s.UpdatedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := j.db.Exec(`INSERT INTO connection_log (robot_id, status, error, at) VALUES (?, ?, ?, ?)`,
		s.RobotID, string(s.Status), s.LastError, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert connection state: %w", err)
	}
	return nil
}

// Attach journals every state change of m and returns the unsubscribe func.
func (j *Journal) Attach(m *connection.Machine) func() {
	return m.Subscribe(func(s connection.Snapshot) {
		if err := j.RecordConnection(s); err != nil {
			j.logger.Warnf("Failed to journal connection state: %v", err)
		}
	})
}

// Recent returns the last n commands, newest first
func (j *Journal) Recent(n int) ([]CommandEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := j.db.Query(`SELECT id, session_id, robot_id, kind, payload, ok, error, issued_at, completed_at
		FROM command_log ORDER BY issued_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []CommandEntry
	for rows.Next() {
		var (
			e                  CommandEntry
			sessionID, errText sql.NullString
			issued, completed  int64
		)
		if err := rows.Scan(&e.ID, &sessionID, &e.RobotID, &e.Kind, &e.Payload, &e.OK, &errText, &issued, &completed); err != nil {
			return nil, err
		}
		e.SessionID = sessionID.String
		e.Error = errText.String
		e.IssuedAt = time.UnixMilli(issued)
		e.CompletedAt = time.UnixMilli(completed)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecentConnections returns the last n link transitions, newest first
func (j *Journal) RecentConnections(n int) ([]ConnectionEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := j.db.Query(`SELECT robot_id, status, error, at FROM connection_log ORDER BY log_id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ConnectionEntry
	for rows.Next() {
		var (
			e                ConnectionEntry
			robotID, errText sql.NullString
			at               int64
		)
		if err := rows.Scan(&robotID, &e.Status, &errText, &at); err != nil {
			return nil, err
		}
		e.RobotID = robotID.String
		e.Error = errText.String
		e.At = time.UnixMilli(at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
