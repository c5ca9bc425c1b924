package processing

import (
	"strings"
	"sync"
	"time"

	"github.com/open-teleop/console/domain/teleop"
	"github.com/open-teleop/console/pkg/config"
	customlog "github.com/open-teleop/console/pkg/log"
)

// KindInfo holds routing metadata and counters for a command kind
type KindInfo struct {
	Kind       teleop.Kind
	Priority   string
	StatCount  int64
	LastIssued int64
}

// supersedeKey identifies commands that replace each other on one robot.
type supersedeKey struct {
	robotID string
	group   string
}

// CommandRegistry maps command kinds to priorities, counts dispatches and
// tracks the newest issued command per robot and motion group.
type CommandRegistry struct {
	logger customlog.Logger
	kinds  map[teleop.Kind]*KindInfo
	latest map[supersedeKey]uint64
	seq    uint64
	mu     sync.RWMutex
}

// DefaultPriorities routes stops to the HIGH pool and everything else to STANDARD.
func DefaultPriorities() map[teleop.Kind]string {
	return map[teleop.Kind]string{
		teleop.KindEmergencyStop: PriorityHigh,
		teleop.KindStop:          PriorityHigh,
		teleop.KindMove:          PriorityStandard,
		teleop.KindTurn:          PriorityStandard,
		teleop.KindArm:           PriorityStandard,
	}
}

// NewCommandRegistry creates a registry with the default priorities
func NewCommandRegistry(logger customlog.Logger) *CommandRegistry {
	r := &CommandRegistry{
		logger: logger,
		latest: make(map[supersedeKey]uint64),
	}
	r.reset(nil)
	return r
}

// LoadFromConfig applies the command_priorities overrides from the config.
// Unknown kinds and priorities are ignored. Stop and EmergencyStop always
// stay HIGH.
func (r *CommandRegistry) LoadFromConfig(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset(cfg.CommandPriorities)
	r.logger.Infof("Loaded priorities for %d command kinds", len(r.kinds))
}

func (r *CommandRegistry) reset(overrides map[string]string) {
	prev := r.kinds
	r.kinds = make(map[teleop.Kind]*KindInfo)
	for kind, priority := range DefaultPriorities() {
		info := &KindInfo{Kind: kind, Priority: priority}
		if old, ok := prev[kind]; ok {
			info.StatCount, info.LastIssued = old.StatCount, old.LastIssued
		}
		r.kinds[kind] = info
	}
	for name, priority := range overrides {
		info, ok := r.kinds[teleop.Kind(strings.ToLower(name))]
		if !ok {
			r.logger.Warnf("Ignoring priority for unknown command kind '%s'", name)
			continue
		}
		priority = strings.ToUpper(priority)
		if priority != PriorityHigh && priority != PriorityStandard {
			r.logger.Warnf("Ignoring unknown priority '%s' for '%s'", priority, name)
			continue
		}
		if info.Kind == teleop.KindStop || info.Kind == teleop.KindEmergencyStop {
			continue
		}
		info.Priority = priority
	}
}

// GetPriority returns the pool for kind, STANDARD when unknown
func (r *CommandRegistry) GetPriority(kind teleop.Kind) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if info, ok := r.kinds[kind]; ok {
		return info.Priority
	}
	return PriorityStandard
}

// Issue wraps cmd in an envelope, records it and marks it as the newest
// command of its motion group.
func (r *CommandRegistry) Issue(robotID string, cmd teleop.Command) *Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	priority := PriorityStandard
	info, ok := r.kinds[cmd.Kind()]
	if ok {
		priority = info.Priority
		info.StatCount++
		info.LastIssued = time.Now().UnixNano()
	}
	env := newEnvelope(robotID, cmd, priority, r.seq)
	for _, g := range supersedes(cmd) {
		r.latest[supersedeKey{robotID, g}] = env.Seq
	}
	return env
}

// Superseded reports whether a newer command of the same motion group was
// issued for the same robot after env.
func (r *CommandRegistry) Superseded(env *Envelope) bool {
	group := motionGroup(env.Command)
	if group == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest[supersedeKey{env.RobotID, group}] > env.Seq
}

// motionGroup returns the group env belongs to, "" for commands that are
// never skipped.
func motionGroup(cmd teleop.Command) string {
	switch cmd.(type) {
	case teleop.Move, teleop.Stop:
		return "drive"
	case teleop.Turn:
		return "turn"
	}
	return ""
}

// supersedes lists the groups a newly issued cmd makes older commands stale in.
func supersedes(cmd teleop.Command) []string {
	switch cmd.(type) {
	case teleop.EmergencyStop:
		return []string{"drive", "turn"}
	}
	if g := motionGroup(cmd); g != "" {
		return []string{g}
	}
	return nil
}

// GetKindStats returns per-kind statistics
func (r *CommandRegistry) GetKindStats() map[string]map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]map[string]interface{})
	for kind, info := range r.kinds {
		stats[string(kind)] = map[string]interface{}{
			"count":       info.StatCount,
			"last_issued": info.LastIssued,
			"priority":    info.Priority,
		}
	}
	return stats
}
