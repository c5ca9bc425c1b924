package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the operational teleop configuration
type Config struct {
	Version           string            `yaml:"version" json:"version"`
	ConfigID          string            `yaml:"config_id" json:"config_id"`
	LastUpdated       string            `yaml:"lastUpdated" json:"lastUpdated"`
	DefaultRobot      string            `yaml:"default_robot,omitempty" json:"default_robot,omitempty"`
	Robots            []RobotConfig     `yaml:"robots" json:"robots"`
	Input             InputConfig       `yaml:"input" json:"input"`
	CommandPriorities map[string]string `yaml:"command_priorities,omitempty" json:"command_priorities,omitempty"`
}

// RobotConfig describes one robot the operator can select
type RobotConfig struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	BaseURL string `yaml:"base_url" json:"base_url"`
}

// InputConfig holds control tuning shared by the normalizer and the mapper
type InputConfig struct {
	DeadZone       float64 `yaml:"dead_zone" json:"dead_zone"`
	OverTravel     float64 `yaml:"over_travel" json:"over_travel"`
	PulseMs        int     `yaml:"pulse_ms" json:"pulse_ms"`
	ArmPulseMs     int     `yaml:"arm_pulse_ms" json:"arm_pulse_ms"`
	SliderReturnMs int     `yaml:"slider_return_ms" json:"slider_return_ms"`
}

// Input defaults
const (
	DefaultDeadZone       = 0.05
	DefaultOverTravel     = 1.2
	DefaultPulseMs        = 200
	DefaultArmPulseMs     = 300
	DefaultSliderReturnMs = 400
)

// WithDefaults fills zero fields with the standard console tuning.
func (i InputConfig) WithDefaults() InputConfig {
	if i.DeadZone <= 0 {
		i.DeadZone = DefaultDeadZone
	}
	if i.OverTravel <= 0 {
		i.OverTravel = DefaultOverTravel
	}
	if i.PulseMs <= 0 {
		i.PulseMs = DefaultPulseMs
	}
	if i.ArmPulseMs <= 0 {
		i.ArmPulseMs = DefaultArmPulseMs
	}
	if i.SliderReturnMs <= 0 {
		i.SliderReturnMs = DefaultSliderReturnMs
	}
	return i
}

// Pulse returns the axis feedback window.
func (i InputConfig) Pulse() time.Duration {
	return time.Duration(i.WithDefaults().PulseMs) * time.Millisecond
}

// ArmPulse returns the arm button feedback window.
func (i InputConfig) ArmPulse() time.Duration {
	return time.Duration(i.WithDefaults().ArmPulseMs) * time.Millisecond
}

// SliderReturn returns the cosmetic slider return-to-neutral duration.
func (i InputConfig) SliderReturn() time.Duration {
	return time.Duration(i.WithDefaults().SliderReturnMs) * time.Millisecond
}

// LoadConfig loads configuration from the specified file path
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses and validates operational YAML.
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.Input = config.Input.WithDefaults()
	return &config, nil
}

// Validate checks the roster: at least one robot, unique IDs, base URLs present.
func (c *Config) Validate() error {
	if len(c.Robots) == 0 {
		return fmt.Errorf("validation failed: at least one robot is required")
	}
	seen := make(map[string]bool, len(c.Robots))
	for i, r := range c.Robots {
		if r.ID == "" {
			return fmt.Errorf("validation failed: robots[%d].id is empty", i)
		}
		if r.BaseURL == "" {
			return fmt.Errorf("validation failed: robot '%s' has no base_url", r.ID)
		}
		if seen[r.ID] {
			return fmt.Errorf("validation failed: duplicate robot id '%s'", r.ID)
		}
		seen[r.ID] = true
	}
	if c.DefaultRobot != "" && !seen[c.DefaultRobot] {
		return fmt.Errorf("validation failed: default_robot '%s' is not in the roster", c.DefaultRobot)
	}
	return nil
}

// GetRobot returns the roster entry for id
func (c *Config) GetRobot(id string) (RobotConfig, bool) {
	for _, r := range c.Robots {
		if r.ID == id {
			return r, true
		}
	}
	return RobotConfig{}, false
}

// DefaultRobotID returns default_robot, falling back to the first roster entry.
func (c *Config) DefaultRobotID() string {
	if c.DefaultRobot != "" {
		return c.DefaultRobot
	}
	if len(c.Robots) > 0 {
		return c.Robots[0].ID
	}
	return ""
}
