package services

import (
	"fmt"
	"os"
	"sync"

	"github.com/open-teleop/console/pkg/config"
	customlog "github.com/open-teleop/console/pkg/log"
)

// ConfigPublisher defines the interface for publishing configuration updates.
type ConfigPublisher interface {
	PublishConfigUpdatedNotification() error
}

// ConfigListener is called with every applied configuration
type ConfigListener func(cfg *config.Config)

// TeleopConfigService defines the interface for managing the operational teleop configuration.
type TeleopConfigService interface {
	LoadConfig() error
	GetCurrentConfig() *config.Config
	GetCurrentConfigYAML() ([]byte, error)
	UpdateConfig(newConfigYAML []byte) error
	PersistConfig(yamlData []byte) error
	SetPublisher(p ConfigPublisher)
	OnUpdate(l ConfigListener)
}

// teleopConfigService implements the TeleopConfigService interface.
type teleopConfigService struct {
	operationalConfigPath string
	logger                customlog.Logger
	configPublisher       ConfigPublisher
	listeners             []ConfigListener
	currentConfig         *config.Config
	mu                    sync.RWMutex
}

// NewTeleopConfigService creates a new TeleopConfigService and loads the file at
// operationalConfigPath. Unlike a missing publisher, a missing or invalid file is fatal:
// the console cannot run without a roster.
func NewTeleopConfigService(operationalConfigPath string, logger customlog.Logger) (TeleopConfigService, error) {
	if operationalConfigPath == "" {
		return nil, fmt.Errorf("operational configuration path cannot be empty")
	}
	if logger == nil {
		logger = customlog.Nop()
	}

	service := &teleopConfigService{
		operationalConfigPath: operationalConfigPath,
		logger:                logger,
	}
	if err := service.LoadConfig(); err != nil {
		return nil, err
	}

	logger.Infof("TeleopConfigService initialized for path: %s", operationalConfigPath)
	return service, nil
}

// LoadConfig reads the operational config file from disk and replaces the current config.
// The current config is kept when the file cannot be read or is invalid.
func (s *teleopConfigService) LoadConfig() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Infof("Loading operational configuration from: %s", s.operationalConfigPath)
	cfg, err := config.LoadConfig(s.operationalConfigPath)
	if err != nil {
		s.logger.Errorf("Error loading operational config '%s': %v", s.operationalConfigPath, err)
		return fmt.Errorf("error loading operational config file '%s': %w", s.operationalConfigPath, err)
	}

	s.currentConfig = cfg
	s.logger.Infof("Loaded operational configuration ID: %s, Version: %s, %d robots", cfg.ConfigID, cfg.Version, len(cfg.Robots))
	return nil
}

// GetCurrentConfig returns the active configuration. Callers must not modify it.
func (s *teleopConfigService) GetCurrentConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentConfig
}

// GetCurrentConfigYAML returns the raw YAML on disk, comments included.
func (s *teleopConfigService) GetCurrentConfigYAML() ([]byte, error) {
	s.mu.RLock()
	path := s.operationalConfigPath
	s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Errorf("Error reading operational config file '%s' for YAML export: %v", path, err)
		return nil, fmt.Errorf("error reading operational config file '%s': %w", path, err)
	}
	return data, nil
}

// UpdateConfig validates, persists and applies new operational YAML, then
// notifies listeners and the publisher.
func (s *teleopConfigService) UpdateConfig(newConfigYAML []byte) error {
	s.mu.Lock()

	// 1. Parse and validate before touching the file
	newCfg, err := config.ParseConfig(newConfigYAML)
	if err != nil {
		s.mu.Unlock()
		s.logger.Warnf("Rejected operational configuration: %v", err)
		return err
	}

	// 2. Persist; the in-memory config only changes once the file did
	if err := s.persistConfigUnlocked(newConfigYAML); err != nil {
		s.mu.Unlock()
		return err
	}

	oldID := "N/A"
	if s.currentConfig != nil {
		oldID = s.currentConfig.ConfigID
	}
	// 3. Swap and snapshot the callbacks while still locked
	s.currentConfig = newCfg
	listeners := append([]ConfigListener(nil), s.listeners...)
	publisher := s.configPublisher
	s.mu.Unlock()

	s.logger.Infof("Operational configuration updated. ID %s -> %s, Version: %s", oldID, newCfg.ConfigID, newCfg.Version)

	// 4. Listeners run outside the lock; they may read the config back
	for _, l := range listeners {
		l(newCfg)
	}

	// 5. Notify subscribers asynchronously
	if publisher != nil {
		go func() {
			if err := publisher.PublishConfigUpdatedNotification(); err != nil {
				s.logger.Warnf("Failed to publish config update notification: %v", err)
			}
		}()
	}
	return nil
}

// PersistConfig writes the given YAML data to the operational config file path.
func (s *teleopConfigService) PersistConfig(yamlData []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistConfigUnlocked(yamlData)
}

func (s *teleopConfigService) persistConfigUnlocked(yamlData []byte) error {
	// Write next to the target and rename so readers never see a partial file
	tmp := s.operationalConfigPath + ".tmp"
	if err := os.WriteFile(tmp, yamlData, 0644); err != nil {
		s.logger.Errorf("Error writing operational config file '%s': %v", tmp, err)
		return fmt.Errorf("error writing operational config file '%s': %w", s.operationalConfigPath, err)
	}
	if err := os.Rename(tmp, s.operationalConfigPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("error replacing operational config file '%s': %w", s.operationalConfigPath, err)
	}
	s.logger.Debugf("Persisted configuration to %s", s.operationalConfigPath)
	return nil
}

// SetPublisher allows injecting the ConfigPublisher after initialization.
func (s *teleopConfigService) SetPublisher(p ConfigPublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configPublisher = p
}

// OnUpdate registers l to run after every successful UpdateConfig.
func (s *teleopConfigService) OnUpdate(l ConfigListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}
