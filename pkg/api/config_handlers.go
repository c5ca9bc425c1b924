package api

import (
	"github.com/gofiber/fiber/v2"

	customlog "github.com/open-teleop/console/pkg/log"
	"github.com/open-teleop/console/services"
)

// ConfigHandler holds dependencies for configuration API endpoints.
type ConfigHandler struct {
	configService services.TeleopConfigService
	logger        customlog.Logger
}

// NewConfigHandler creates a new handler for configuration endpoints.
func NewConfigHandler(configService services.TeleopConfigService, logger customlog.Logger) *ConfigHandler {
	if configService == nil {
		panic("ConfigService cannot be nil in NewConfigHandler")
	}
	return &ConfigHandler{
		configService: configService,
		logger:        logger,
	}
}

// RegisterConfigRoutes registers the configuration API endpoints with the Fiber app.
func RegisterConfigRoutes(app *fiber.App, configService services.TeleopConfigService, logger customlog.Logger) {
	h := NewConfigHandler(configService, logger)

	apiGroup := app.Group("/api/v1/config")
	apiGroup.Get("/teleop", h.handleGetTeleopConfig)
	apiGroup.Put("/teleop", h.handleUpdateTeleopConfig)

	logger.Debugf("Registered teleop configuration API endpoints under /api/v1/config")
}

// handleGetTeleopConfig returns the operational config YAML as stored on disk.
func (h *ConfigHandler) handleGetTeleopConfig(c *fiber.Ctx) error {
	yamlData, err := h.configService.GetCurrentConfigYAML()
	if err != nil {
		h.logger.Errorf("Failed to get current teleop config YAML: %v", err)
		return err
	}

	c.Set(fiber.HeaderContentType, "application/x-yaml")
	return c.Send(yamlData)
}

// handleUpdateTeleopConfig validates and applies a new operational config.
// The roster and priorities apply at once; input tuning applies on restart.
func (h *ConfigHandler) handleUpdateTeleopConfig(c *fiber.Ctx) error {
	switch c.Get(fiber.HeaderContentType) {
	case "application/x-yaml", "application/yaml", "text/yaml":
	default:
		h.logger.Warnf("Teleop config PUT with Content-Type %q, parsing as YAML anyway", c.Get(fiber.HeaderContentType))
	}

	newConfigYAML := c.Body()
	if len(newConfigYAML) == 0 {
		return badRequest("request body cannot be empty")
	}

	if err := h.configService.UpdateConfig(newConfigYAML); err != nil {
		h.logger.Warnf("Failed to update teleop configuration: %v", err)
		return badRequest("configuration update failed: %v", err)
	}

	cfg := h.configService.GetCurrentConfig()
	return c.JSON(fiber.Map{
		"message":   "Teleop configuration updated",
		"config_id": cfg.ConfigID,
		"version":   cfg.Version,
	})
}
