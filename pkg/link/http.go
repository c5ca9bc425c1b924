package link

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/console/domain/teleop"
	"github.com/open-teleop/console/pkg/log"
)

// DefaultTimeout bounds a single request when none is configured.
const DefaultTimeout = time.Second

// Roster maps robot IDs to the base URL of their control surface.
type Roster map[string]string

// HTTPClient talks to robots over HTTP/JSON using fiber's client agent.
type HTTPClient struct {
	mu      sync.RWMutex
	roster  Roster
	timeout time.Duration
	logger  log.Logger
}

// NewHTTPClient creates a client for the robots in roster.
func NewHTTPClient(roster Roster, timeout time.Duration, logger log.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.Nop()
	}
	c := &HTTPClient{timeout: timeout, logger: logger}
	c.SetRoster(roster)
	return c
}

// SetRoster replaces the robot address table.
func (c *HTTPClient) SetRoster(roster Roster) {
	copied := make(Roster, len(roster))
	for id, url := range roster {
		copied[id] = strings.TrimRight(url, "/")
	}
	c.mu.Lock()
	c.roster = copied
	c.mu.Unlock()
}

func (c *HTTPClient) baseURL(robotID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	url, ok := c.roster[robotID]
	return url, ok
}

// SendCommand posts cmd to the robot. Exactly one request is made.
func (c *HTTPClient) SendCommand(ctx context.Context, robotID string, cmd teleop.Command) (Ack, error) {
	const op = "send"
	path, body := Route(cmd)
	if path == "" {
		return Ack{}, protocolError(op, robotID, 0, fmt.Errorf("unroutable command %v", cmd))
	}
	base, ok := c.baseURL(robotID)
	if !ok {
		return Ack{}, transportError(op, robotID, ErrUnknownRobot)
	}
	timeout, err := c.deadline(ctx)
	if err != nil {
		return Ack{}, transportError(op, robotID, err)
	}

	code, resp, errs := fiber.Post(base + path).JSON(body).Timeout(timeout).Bytes()
	if len(errs) > 0 {
		c.logger.WithField("robot", robotID).Debugf("Command %s failed: %v", cmd.Kind(), errs[0])
		return Ack{}, transportError(op, robotID, errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		return Ack{}, protocolError(op, robotID, code, responseDetail(resp))
	}

	ack := Ack{StatusCode: code}
	if t, err := DecodeTelemetry(resp); err == nil {
		ack.Status = t.State
	}
	return ack, nil
}

// PollStatus fetches the robot's current telemetry. Exactly one request is made.
func (c *HTTPClient) PollStatus(ctx context.Context, robotID string) (Telemetry, error) {
	const op = "poll"
	base, ok := c.baseURL(robotID)
	if !ok {
		return Telemetry{}, transportError(op, robotID, ErrUnknownRobot)
	}
	timeout, err := c.deadline(ctx)
	if err != nil {
		return Telemetry{}, transportError(op, robotID, err)
	}

	code, resp, errs := fiber.Get(base + "/status").Timeout(timeout).Bytes()
	if len(errs) > 0 {
		return Telemetry{}, transportError(op, robotID, errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		return Telemetry{}, protocolError(op, robotID, code, responseDetail(resp))
	}
	t, err := DecodeTelemetry(resp)
	if err != nil {
		return Telemetry{}, protocolError(op, robotID, code, err)
	}
	return t, nil
}

// deadline returns the request timeout, shortened to ctx's deadline.
func (c *HTTPClient) deadline(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			if left <= 0 {
				return 0, context.DeadlineExceeded
			}
			timeout = left
		}
	}
	return timeout, nil
}

func responseDetail(body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}
