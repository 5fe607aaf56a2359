// Package config loads and validates the static configuration of an eRPC
// process.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (ERPC_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Environment variables override only keys that the configuration file
// sets. When no configuration file is found, Load returns the defaults and
// does not consult the environment.
//
// Dynamic state (sessions, request handlers, endpoint hooks) is managed at
// runtime through the Nexus API and never appears here.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the eRPC daemon configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Nexus configures the process-wide session-management coordinator
	Nexus NexusConfig `mapstructure:"nexus" yaml:"nexus"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// NexusConfig configures the Nexus: the session-management thread, the
// background worker pool, and the control transport.
type NexusConfig struct {
	// Hostname is this host's name as seen by every peer in the cluster.
	// Peers connect to it, so it must resolve cluster-wide.
	Hostname string `mapstructure:"hostname" validate:"required,hostname|ip" yaml:"hostname"`

	// MgmtUDPPort is the UDP port all Nexuses in the cluster listen on
	// for session-management packets
	// Default: 31850
	MgmtUDPPort uint16 `mapstructure:"mgmt_udp_port" validate:"required" yaml:"mgmt_udp_port"`

	// NumBgThreads is the number of background request-processing workers
	// Valid values: 0..8
	NumBgThreads int `mapstructure:"num_bg_threads" validate:"gte=0,lte=8" yaml:"num_bg_threads"`

	// SMThreadCore is the CPU core the session-management thread is pinned
	// to. Set to -1 to disable pinning.
	// Default: 15
	SMThreadCore int `mapstructure:"sm_thread_core" validate:"gte=-1,lte=1023" yaml:"sm_thread_core"`

	// SMPollInterval bounds each SM event-loop iteration, keeping CPU use
	// low while the control plane is idle
	// Default: 50ms
	SMPollInterval time.Duration `mapstructure:"sm_poll_interval" validate:"gt=0" yaml:"sm_poll_interval"`
}

// Load reads the configuration from the given path (or defaults when the
// path is empty and no default file exists), applies defaults, and
// validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			fields := make([]string, 0, len(errs))
			for _, fe := range errs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// setupViper configures search paths and environment overrides.
func setupViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/erpc")
	}

	// ERPC_NEXUS_MGMT_UDP_PORT=31850 overrides nexus.mgmt_udp_port
	v.SetEnvPrefix("ERPC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// readConfigFile reads the config file if present. Returns whether a file
// was found; a missing file is not an error.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns the decode hooks for config unmarshaling.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// durationDecodeHook converts strings like "50ms" into time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch f.Kind() {
		case reflect.String:
			return time.ParseDuration(data.(string))
		case reflect.Int, reflect.Int64:
			// Bare integers are nanoseconds, the unit of
			// time.Duration. Prefer "50ms" strings in files.
			return time.Duration(reflect.ValueOf(data).Int()), nil
		default:
			return data, nil
		}
	}
}
