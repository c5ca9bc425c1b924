package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/console/domain/connection"
	"github.com/open-teleop/console/pkg/journal"
	customlog "github.com/open-teleop/console/pkg/log"
	"github.com/open-teleop/console/pkg/processing"
)

const recentLimit = 20

// LinkState is the connection machine as seen by the UI
type LinkState interface {
	Snapshot() connection.Snapshot
	Subscribe(l connection.Listener) func()
	PollNow()
}

// DispatchStats reports dispatch pool health
type DispatchStats interface {
	GetPoolMetrics() map[string]processing.PoolMetrics
	Registry() *processing.CommandRegistry
}

// CommandLog reads the operator journal
type CommandLog interface {
	Recent(n int) ([]journal.CommandEntry, error)
	RecentConnections(n int) ([]journal.ConnectionEntry, error)
}

// StatusHandler serves link state and diagnostics.
type StatusHandler struct {
	link     LinkState
	dispatch DispatchStats
	log      CommandLog
	logger   customlog.Logger
}

// RegisterStatusRoutes registers /api/v1/connection and /api/v1/diagnostics.
// dispatch and log may be nil.
func RegisterStatusRoutes(app *fiber.App, link LinkState, dispatch DispatchStats, log CommandLog, logger customlog.Logger) {
	h := &StatusHandler{link: link, dispatch: dispatch, log: log, logger: logger}

	app.Get("/api/v1/connection", h.handleGetConnection)
	app.Post("/api/v1/connection/poll", h.handlePoll)
	app.Get("/api/v1/diagnostics", h.handleGetDiagnostics)
}

func (h *StatusHandler) handleGetConnection(c *fiber.Ctx) error {
	return c.JSON(h.link.Snapshot())
}

func (h *StatusHandler) handlePoll(c *fiber.Ctx) error {
	h.link.PollNow()
	return c.Status(fiber.StatusAccepted).JSON(h.link.Snapshot())
}

func (h *StatusHandler) handleGetDiagnostics(c *fiber.Ctx) error {
	resp := DiagnosticsResponse{
		Pools:    map[string]processing.PoolMetrics{},
		Commands: map[string]map[string]interface{}{},
	}
	if h.dispatch != nil {
		resp.Pools = h.dispatch.GetPoolMetrics()
		resp.Commands = h.dispatch.Registry().GetKindStats()
	}
	if h.log != nil {
		var err error
		if resp.RecentCommands, err = h.log.Recent(recentLimit); err != nil {
			h.logger.Warnf("Failed to read command journal: %v", err)
		}
		if resp.RecentLinks, err = h.log.RecentConnections(recentLimit); err != nil {
			h.logger.Warnf("Failed to read connection journal: %v", err)
		}
	}
	return c.JSON(resp)
}
