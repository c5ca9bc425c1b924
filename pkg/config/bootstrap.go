package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// BootstrapFilename is the bootstrap file looked up inside the config directory.
const BootstrapFilename = "console_config.yaml"

// BootstrapConfig holds the initial configuration loaded from console_config.yaml
type BootstrapConfig struct {
	Logging    LoggingConfig         `yaml:"logging"`
	Server     BootstrapServerConfig `yaml:"server"`
	Link       LinkConfig            `yaml:"link"`
	ZeroMQ     ZeroMQBootstrap       `yaml:"zeromq"`
	Data       DataConfig            `yaml:"data"`
	Processing ProcessingConfig      `yaml:"processing"`
}

// LoggingConfig holds logging settings from bootstrap
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogPath string `yaml:"log_path,omitempty"`
}

// BootstrapServerConfig holds the console HTTP server settings
type BootstrapServerConfig struct {
	HTTPPort int `yaml:"http_port"`
}

// LinkConfig controls how the console talks to the robot control surface
type LinkConfig struct {
	PollIntervalMs   int `yaml:"poll_interval_ms"`
	RequestTimeoutMs int `yaml:"request_timeout_ms"`
}

// PollInterval returns the status poll cadence, 1200ms when unset.
func (l LinkConfig) PollInterval() time.Duration {
	if l.PollIntervalMs <= 0 {
		return 1200 * time.Millisecond
	}
	return time.Duration(l.PollIntervalMs) * time.Millisecond
}

// RequestTimeout returns the per-request deadline, 1s when unset.
func (l LinkConfig) RequestTimeout() time.Duration {
	if l.RequestTimeoutMs <= 0 {
		return time.Second
	}
	return time.Duration(l.RequestTimeoutMs) * time.Millisecond
}

// ZeroMQBootstrap holds ZeroMQ settings from bootstrap
type ZeroMQBootstrap struct {
	Enabled            bool   `yaml:"enabled"`
	RequestBindAddress string `yaml:"request_bind_address"`
	PublishBindAddress string `yaml:"publish_bind_address"`
}

// ProcessingConfig holds command dispatch worker configuration from bootstrap
type ProcessingConfig struct {
	HighPriorityWorkers     int `yaml:"high_priority_workers"`
	StandardPriorityWorkers int `yaml:"standard_priority_workers"`
	QueueSize               int `yaml:"queue_size"`
}

// DataConfig holds data directory settings from bootstrap
type DataConfig struct {
	Directory            string `yaml:"directory"`
	TeleopConfigFilename string `yaml:"teleop_config_file"`
	JournalFilename      string `yaml:"journal_file,omitempty"`
}

// TeleopConfigPath joins the data directory with the operational config filename.
func (d DataConfig) TeleopConfigPath() string {
	return filepath.Join(d.Directory, d.TeleopConfigFilename)
}

// JournalPath returns the sqlite journal location, empty when journaling is off.
func (d DataConfig) JournalPath() string {
	if d.JournalFilename == "" {
		return ""
	}
	return filepath.Join(d.Directory, d.JournalFilename)
}

// LoadBootstrapConfig loads the bootstrap configuration from console_config.yaml
func LoadBootstrapConfig(configDir string) (*BootstrapConfig, error) {
	bootstrapConfigPath := filepath.Join(configDir, BootstrapFilename)

	data, err := os.ReadFile(bootstrapConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error reading bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	var bootstrapCfg BootstrapConfig
	if err := yaml.Unmarshal(data, &bootstrapCfg); err != nil {
		return nil, fmt.Errorf("error parsing bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	if bootstrapCfg.ZeroMQ.Enabled {
		if bootstrapCfg.ZeroMQ.RequestBindAddress == "" {
			return nil, fmt.Errorf("missing required field in bootstrap config: zeromq.request_bind_address")
		}
		if bootstrapCfg.ZeroMQ.PublishBindAddress == "" {
			return nil, fmt.Errorf("missing required field in bootstrap config: zeromq.publish_bind_address")
		}
	}
	if bootstrapCfg.Data.Directory == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: data.directory")
	}
	if bootstrapCfg.Data.TeleopConfigFilename == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: data.teleop_config_file")
	}

	if bootstrapCfg.Server.HTTPPort == 0 {
		bootstrapCfg.Server.HTTPPort = 8080
	}
	if bootstrapCfg.Processing.HighPriorityWorkers <= 0 {
		bootstrapCfg.Processing.HighPriorityWorkers = 1
	}
	if bootstrapCfg.Processing.StandardPriorityWorkers <= 0 {
		bootstrapCfg.Processing.StandardPriorityWorkers = 4
	}
	if bootstrapCfg.Processing.QueueSize <= 0 {
		bootstrapCfg.Processing.QueueSize = 32
	}

	return &bootstrapCfg, nil
}
