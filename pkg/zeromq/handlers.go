package zeromq

import (
	"encoding/json"
	"fmt"

	"github.com/open-teleop/console/domain/connection"
	"github.com/open-teleop/console/domain/session"
	"github.com/open-teleop/console/pkg/config"
	customlog "github.com/open-teleop/console/pkg/log"
)

// ConfigSource provides the active operational configuration
type ConfigSource interface {
	GetCurrentConfig() *config.Config
}

// SnapshotSource provides the current link state
type SnapshotSource interface {
	Snapshot() connection.Snapshot
}

// SessionSource provides the operator session
type SessionSource interface {
	View() session.View
	PowerOff()
}

// StatusReport answers STATUS_REQUEST
type StatusReport struct {
	Session    session.View        `json:"session"`
	Connection connection.Snapshot `json:"connection"`
}

// EstopReport answers ESTOP_REQUEST
type EstopReport struct {
	RobotID string `json:"robot_id"`
	Paused  bool   `json:"paused"`
}

func expectType(data []byte, messageType string) error {
	var msg ZeroMQMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type != messageType {
		return fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type)
	}
	return nil
}

func respond(messageType string, data interface{}) ([]byte, error) {
	responseData, err := json.Marshal(NewMessage(messageType, data))
	if err != nil {
		return nil, fmt.Errorf("failed to serialize response: %w", err)
	}
	return responseData, nil
}

// ConfigHandler handles CONFIG_REQUEST messages
type ConfigHandler struct {
	source ConfigSource
	logger customlog.Logger
}

// NewConfigHandler creates a new handler for configuration requests
func NewConfigHandler(source ConfigSource, logger customlog.Logger) *ConfigHandler {
	return &ConfigHandler{source: source, logger: logger}
}

// HandleMessage processes a CONFIG_REQUEST message and returns a CONFIG_RESPONSE
func (h *ConfigHandler) HandleMessage(data []byte) ([]byte, error) {
	if err := expectType(data, MsgTypeConfigRequest); err != nil {
		return nil, err
	}
	cfg := h.source.GetCurrentConfig()
	if cfg == nil {
		return nil, fmt.Errorf("no operational configuration loaded")
	}
	h.logger.Debugf("Sending configuration %s", cfg.ConfigID)
	return respond(MsgTypeConfigResponse, cfg)
}

// StatusHandler handles STATUS_REQUEST messages
type StatusHandler struct {
	session SessionSource
	link    SnapshotSource
}

// NewStatusHandler creates a handler reporting session and link state
func NewStatusHandler(sess SessionSource, link SnapshotSource) *StatusHandler {
	return &StatusHandler{session: sess, link: link}
}

// HandleMessage returns a STATUS_RESPONSE
func (h *StatusHandler) HandleMessage(data []byte) ([]byte, error) {
	if err := expectType(data, MsgTypeStatusRequest); err != nil {
		return nil, err
	}
	return respond(MsgTypeStatusResponse, StatusReport{
		Session:    h.session.View(),
		Connection: h.link.Snapshot(),
	})
}

// EstopHandler powers off the session on request from an external kill switch
type EstopHandler struct {
	session SessionSource
	logger  customlog.Logger
}

// NewEstopHandler creates a handler for ESTOP_REQUEST
func NewEstopHandler(sess SessionSource, logger customlog.Logger) *EstopHandler {
	return &EstopHandler{session: sess, logger: logger}
}

// HandleMessage powers off the session and reports the resulting state
func (h *EstopHandler) HandleMessage(data []byte) ([]byte, error) {
	if err := expectType(data, MsgTypeEstopRequest); err != nil {
		return nil, err
	}
	h.session.PowerOff()
	view := h.session.View()
	h.logger.Warnf("Remote emergency stop for %s", view.RobotID)
	return respond(MsgTypeEstopResponse, EstopReport{RobotID: view.RobotID, Paused: view.Paused})
}

// RegisterConsoleHandlers wires the console request handlers into the service
func RegisterConsoleHandlers(service *ZeroMQService, cfg ConfigSource, sess SessionSource, link SnapshotSource, logger customlog.Logger) {
	service.RegisterHandler(MsgTypeConfigRequest, NewConfigHandler(cfg, logger))
	service.RegisterHandler(MsgTypeStatusRequest, NewStatusHandler(sess, link))
	service.RegisterHandler(MsgTypeEstopRequest, NewEstopHandler(sess, logger))
	logger.Infof("Registered console request handlers")
}
