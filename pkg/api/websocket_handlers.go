package api

import (
	"encoding/json"
	"errors"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/console/domain/connection"
	"github.com/open-teleop/console/domain/session"
	customlog "github.com/open-teleop/console/pkg/log"
)

// DefaultStatusInterval is the /ws/status refresh between link changes. It
// keeps slider return animations and button highlights moving.
const DefaultStatusInterval = 100 * time.Millisecond

// RegisterWebSocketRoutes registers /ws/control and /ws/status.
func RegisterWebSocketRoutes(app *fiber.App, sess *session.Controller, link LinkState, interval time.Duration, logger customlog.Logger) {
	if interval <= 0 {
		interval = DefaultStatusInterval
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/control", websocket.New(func(conn *websocket.Conn) {
		ControlWebSocketHandler(conn, sess, logger)
	}))
	app.Get("/ws/status", websocket.New(func(conn *websocket.Conn) {
		StatusWebSocketHandler(conn, sess, link, interval, logger)
	}))
}

func logClose(logger customlog.Logger, name string, err error) {
	switch {
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure):
		logger.Errorf("%s WS read error: %v", name, err)
	case errors.Is(err, websocket.ErrCloseSent), errors.Is(err, syscall.EPIPE), errors.Is(err, syscall.ECONNRESET):
		logger.Debugf("%s WS connection closed normally", name)
	default:
		logger.Debugf("%s WS connection closed: %v", name, err)
	}
}

// ControlWebSocketHandler applies JSON ControlEvents in arrival order. Events
// that fail are answered with a ControlReply; accepted events get no reply.
func ControlWebSocketHandler(conn *websocket.Conn, sess *session.Controller, logger customlog.Logger) {
	logger.Infof("Control WebSocket connected: %s", conn.RemoteAddr())
	defer logger.Infof("Control WebSocket disconnected: %s", conn.RemoteAddr())

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			logClose(logger, "Control", err)
			return
		}
		if mt != websocket.TextMessage {
			logger.Debugf("Ignoring non-text Control WS message type: %d", mt)
			continue
		}

		var ev ControlEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			logger.Warnf("Failed to unmarshal control event: %v", err)
			if werr := conn.WriteJSON(ControlReply{Type: "error", Error: "invalid event: " + err.Error()}); werr != nil {
				return
			}
			continue
		}

		if _, err := applyControlEvent(sess, ev); err != nil {
			logger.Debugf("Control event %s rejected: %v", ev.Type, err)
			if werr := conn.WriteJSON(ControlReply{Type: ev.Type, Error: err.Error()}); werr != nil {
				return
			}
		}
	}
}

// StatusWebSocketHandler pushes a StatusMessage on connect, on every link
// change and every interval until the client goes away.
func StatusWebSocketHandler(conn *websocket.Conn, sess *session.Controller, link LinkState, interval time.Duration, logger customlog.Logger) {
	logger.Debugf("Status WebSocket connected: %s", conn.RemoteAddr())

	changed := make(chan struct{}, 1)
	unsubscribe := link.Subscribe(func(connection.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	// the reader only detects the close, clients send nothing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				logClose(logger, "Status", err)
				return
			}
		}
	}()
	// the conn is recycled once the handler returns, so the reader must exit first
	defer func() {
		conn.Close()
		<-closed
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		msg := StatusMessage{Session: sess.View(), Connection: link.Snapshot()}
		if err := conn.WriteJSON(msg); err != nil {
			logger.Debugf("Status WS write failed: %v", err)
			return
		}
		select {
		case <-closed:
			return
		case <-changed:
		case <-ticker.C:
		}
	}
}
