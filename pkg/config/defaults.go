package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when the config file leaves fields unset.
const (
	DefaultLogLevel  = "INFO"
	DefaultLogFormat = "text"
	DefaultLogOutput = "stdout"

	DefaultMetricsPort = 9090

	DefaultMgmtUDPPort    = 31850
	DefaultSMThreadCore   = 15
	DefaultSMPollInterval = 50 * time.Millisecond
)

// GetDefaultConfig returns a fully-defaulted configuration. The hostname
// falls back to the OS hostname; peers must be able to resolve it.
func GetDefaultConfig() *Config {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	cfg := &Config{}
	cfg.Nexus.Hostname = hostname
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in defaults for any unset values.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = DefaultLogOutput
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}

	if cfg.Nexus.MgmtUDPPort == 0 {
		cfg.Nexus.MgmtUDPPort = DefaultMgmtUDPPort
	}
	// Core 0 is never used for the SM thread (the OS lives there), so a
	// zero value means unset. Use -1 to disable pinning.
	if cfg.Nexus.SMThreadCore == 0 {
		cfg.Nexus.SMThreadCore = DefaultSMThreadCore
	}
	if cfg.Nexus.SMPollInterval == 0 {
		cfg.Nexus.SMPollInterval = DefaultSMPollInterval
	}
}

// SaveConfig writes the configuration as YAML, for `erpcd init`.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %q: %w", path, err)
	}
	return nil
}
