package zeromq

import (
	"sync"
	"time"

	"github.com/open-teleop/console/domain/connection"
	customlog "github.com/open-teleop/console/pkg/log"
	"github.com/open-teleop/console/pkg/wire"
)

// Publish topics
const (
	TopicTelemetry          = "console.telemetry"
	TopicStatus             = "console.status"
	TopicConfigUpdate       = "configuration.update"
	TopicConfigNotification = "configuration.notification"

	MsgTypeStatus        = "STATUS"
	MsgTypeConfigUpdated = "CONFIG_UPDATED"
)

// Publisher sends topic-prefixed messages
type Publisher interface {
	PublishMessage(topic string, data []byte) error
}

// ConfigPublisher publishes configuration updates to subscribers
type ConfigPublisher struct {
	pub    Publisher
	source ConfigSource
	logger customlog.Logger
}

// NewConfigPublisher creates a new publisher for configuration updates
func NewConfigPublisher(pub Publisher, source ConfigSource, logger customlog.Logger) *ConfigPublisher {
	return &ConfigPublisher{pub: pub, source: source, logger: logger}
}

// PublishConfigUpdate publishes the full current configuration
func (p *ConfigPublisher) PublishConfigUpdate() error {
	cfg := p.source.GetCurrentConfig()
	if cfg == nil {
		return nil
	}
	p.logger.Infof("Publishing configuration update (ID: %s)", cfg.ConfigID)
	return publishJSON(p.pub, TopicConfigUpdate, MsgTypeConfigResponse, cfg)
}

// PublishConfigUpdatedNotification publishes a notification that the config has been updated
func (p *ConfigPublisher) PublishConfigUpdatedNotification() error {
	cfg := p.source.GetCurrentConfig()
	if cfg == nil {
		return nil
	}
	p.logger.Debugf("Publishing configuration update notification")
	return publishJSON(p.pub, TopicConfigNotification, MsgTypeConfigUpdated, map[string]interface{}{
		"config_id":    cfg.ConfigID,
		"version":      cfg.Version,
		"last_updated": cfg.LastUpdated,
	})
}

// TelemetryPublisher fans connection snapshots out as a FlatBuffers frame
// on TopicTelemetry and a JSON status message on TopicStatus.
type TelemetryPublisher struct {
	pub     Publisher
	logger  customlog.Logger
	mu      sync.Mutex
	lastSeq uint64
}

// NewTelemetryPublisher creates a snapshot publisher
func NewTelemetryPublisher(pub Publisher, logger customlog.Logger) *TelemetryPublisher {
	return &TelemetryPublisher{pub: pub, logger: logger}
}

// Attach subscribes to the machine and returns the unsubscribe func.
func (p *TelemetryPublisher) Attach(m *connection.Machine) func() {
	return m.Subscribe(p.Publish)
}

// Publish sends one snapshot. Snapshots older than the last published one are dropped.
func (p *TelemetryPublisher) Publish(s connection.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.Seq != 0 && s.Seq <= p.lastSeq {
		return
	}
	p.lastSeq = s.Seq

	if err := p.pub.PublishMessage(TopicTelemetry, wire.Encode(FrameFor(s))); err != nil {
		p.logger.Debugf("Failed to publish telemetry frame: %v", err)
	}
	if err := publishJSON(p.pub, TopicStatus, MsgTypeStatus, s); err != nil {
		p.logger.Debugf("Failed to publish status: %v", err)
	}
}

// FrameFor converts a snapshot to its wire form
func FrameFor(s connection.Snapshot) wire.Frame {
	f := wire.Frame{
		RobotID:      s.RobotID,
		Status:       string(s.Status),
		ErrorMessage: s.LastError,
		Seq:          s.Seq,
	}
	if !s.UpdatedAt.IsZero() {
		f.TimestampNs = s.UpdatedAt.UnixNano()
	} else {
		f.TimestampNs = time.Now().UnixNano()
	}
	if t := s.Telemetry; t != nil {
		f.HasTelemetry = true
		f.State = t.State
		f.Battery = t.Battery
		f.X = t.Position.X
		f.Y = t.Position.Y
		f.Theta = t.Position.Theta
		f.ArmHeight = t.ArmHeight
		f.ArmDistance = t.ArmDistance
		if f.ErrorMessage == "" {
			f.ErrorMessage = t.ErrorMessage
		}
	}
	return f
}
