// Package config loads the daemon's JSON configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/radariq/internal/sensor"
	"github.com/banshee-data/radariq/internal/serialmux"
)

// Config is the root daemon configuration. All fields are optional; the
// Get* methods provide fallback defaults for anything not specified, so
// partial configs are safe. The settings block is pushed to the sensor on
// startup and uses the same schema as the /api/settings endpoint.
type Config struct {
	// Serial port
	PortPath    *string                `json:"port_path,omitempty"` // empty means auto-detect
	PortOptions *serialmux.PortOptions `json:"port_options,omitempty"`

	// HTTP and storage
	ListenAddr *string `json:"listen_addr,omitempty"`
	DBPath     *string `json:"db_path,omitempty"`

	// Sensor behaviour
	Units          *sensor.UnitSettings  `json:"units,omitempty"`
	QueueDepth     *int                  `json:"queue_depth,omitempty"`
	CommandTimeout *string               `json:"command_timeout,omitempty"` // duration string like "2s"
	Settings       *sensor.SettingsPatch `json:"settings,omitempty"`
}

// Empty returns a Config with all fields set to nil.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file must have a .json
// extension and be under the max file size.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.PortOptions != nil {
		if _, err := c.PortOptions.Normalize(); err != nil {
			return fmt.Errorf("invalid port_options: %w", err)
		}
	}
	if c.Units != nil {
		if err := c.Units.Validate(); err != nil {
			return fmt.Errorf("invalid units: %w", err)
		}
	}
	if c.QueueDepth != nil && *c.QueueDepth < 1 {
		return fmt.Errorf("queue_depth must be at least 1, got %d", *c.QueueDepth)
	}
	if c.CommandTimeout != nil && *c.CommandTimeout != "" {
		if _, err := time.ParseDuration(*c.CommandTimeout); err != nil {
			return fmt.Errorf("invalid command_timeout '%s': %w", *c.CommandTimeout, err)
		}
	}
	return nil
}

// GetPortPath returns the configured serial port path, or empty to
// auto-detect.
func (c *Config) GetPortPath() string {
	if c.PortPath == nil {
		return ""
	}
	return *c.PortPath
}

// GetPortOptions returns the configured serial port options or the
// defaults.
func (c *Config) GetPortOptions() serialmux.PortOptions {
	if c.PortOptions == nil {
		return serialmux.PortOptions{}
	}
	return *c.PortOptions
}

// GetListenAddr returns the listen_addr value or the default.
func (c *Config) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return ":8080"
	}
	return *c.ListenAddr
}

// GetDBPath returns the db_path value or the default.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "radariq.db"
	}
	return *c.DBPath
}

// GetUnits returns the configured units or the SI defaults.
func (c *Config) GetUnits() sensor.UnitSettings {
	if c.Units == nil {
		return sensor.DefaultUnits()
	}
	return *c.Units
}

// GetQueueDepth returns the queue_depth value or the default.
func (c *Config) GetQueueDepth() int {
	if c.QueueDepth == nil {
		return sensor.DefaultQueueDepth
	}
	return *c.QueueDepth
}

// GetCommandTimeout parses and returns the CommandTimeout as a
// time.Duration.
func (c *Config) GetCommandTimeout() time.Duration {
	if c.CommandTimeout == nil || *c.CommandTimeout == "" {
		return sensor.DefaultTimeout
	}
	d, err := time.ParseDuration(*c.CommandTimeout)
	if err != nil {
		return sensor.DefaultTimeout
	}
	return d
}

// GetSettings returns the startup settings patch, which may be empty.
func (c *Config) GetSettings() sensor.SettingsPatch {
	if c.Settings == nil {
		return sensor.SettingsPatch{}
	}
	return *c.Settings
}
