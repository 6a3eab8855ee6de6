// Package config loads the runtime configuration for the aggregation
// service. Values come from an optional JSON file with environment
// variable overrides on top; fields omitted from both fall back to the
// Get* defaults, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/skywatch-data/skywatch/internal/tracker"
)

// Config represents the root configuration for the service. The JSON
// schema doubles as the documented shape of a deployment's config file.
type Config struct {
	// Ingest params
	QueueCapacity *int    `json:"queue_capacity,omitempty" env:"SKYWATCH_QUEUE_CAPACITY"`
	DropPolicy    *string `json:"drop_policy,omitempty" env:"SKYWATCH_DROP_POLICY"`
	DrainGrace    *string `json:"drain_grace,omitempty" env:"SKYWATCH_DRAIN_GRACE"` // duration string like "5s"

	// Track lifecycle params
	HistoryCapacity *int    `json:"history_capacity,omitempty" env:"SKYWATCH_HISTORY_CAPACITY"`
	IdleTimeout     *string `json:"idle_timeout,omitempty" env:"SKYWATCH_IDLE_TIMEOUT"`
	RetentionWindow *string `json:"retention_window,omitempty" env:"SKYWATCH_RETENTION_WINDOW"`

	// Persistence params
	ExportInterval *string `json:"export_interval,omitempty" env:"SKYWATCH_EXPORT_INTERVAL"`
	StatsInterval  *string `json:"stats_interval,omitempty" env:"SKYWATCH_STATS_INTERVAL"`
	DatabasePath   *string `json:"database_path,omitempty" env:"SKYWATCH_DATABASE_PATH"`
	ExportDir      *string `json:"export_dir,omitempty" env:"SKYWATCH_EXPORT_DIR"`

	// Sensor params
	SignalThresholdDBm *float64 `json:"signal_threshold_dbm,omitempty" env:"SKYWATCH_SIGNAL_THRESHOLD_DBM"`
	WiFiInterface      *string  `json:"wifi_interface,omitempty" env:"SKYWATCH_WIFI_INTERFACE"`
	RFPort             *string  `json:"rf_port,omitempty" env:"SKYWATCH_RF_PORT"`

	// Server params
	ListenAddr *string `json:"listen_addr,omitempty" env:"SKYWATCH_LISTEN_ADDR"`
}

// Empty returns a Config with all fields set to nil. Use Load to read
// actual values from a file and the environment.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from an optional JSON file, then applies
// environment variable overrides. An empty path skips the file and
// loads from the environment alone.
func Load(path string) (*Config, error) {
	cfg := Empty()

	if path != "" {
		cleanPath := filepath.Clean(path)
		if ext := filepath.Ext(cleanPath); ext != ".json" {
			return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
		}

		// Check file size for safety (max 1MB)
		fileInfo, err := os.Stat(cleanPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		const maxFileSize = 1 * 1024 * 1024
		if fileInfo.Size() > maxFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
		}

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	// Environment variables win over the file.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.QueueCapacity != nil && *c.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be positive, got %d", *c.QueueCapacity)
	}

	if c.HistoryCapacity != nil && *c.HistoryCapacity < 1 {
		return fmt.Errorf("history_capacity must be positive, got %d", *c.HistoryCapacity)
	}

	if c.DropPolicy != nil {
		switch tracker.DropPolicy(*c.DropPolicy) {
		case tracker.DropNewest, tracker.DropOldest:
		default:
			return fmt.Errorf("drop_policy must be %q or %q, got %q",
				tracker.DropNewest, tracker.DropOldest, *c.DropPolicy)
		}
	}

	for name, value := range map[string]*string{
		"drain_grace":      c.DrainGrace,
		"idle_timeout":     c.IdleTimeout,
		"retention_window": c.RetentionWindow,
		"export_interval":  c.ExportInterval,
		"stats_interval":   c.StatsInterval,
	} {
		if value == nil || *value == "" {
			continue
		}
		if _, err := time.ParseDuration(*value); err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *value, err)
		}
	}

	return nil
}

func (c *Config) duration(value *string, fallback time.Duration) time.Duration {
	if value == nil || *value == "" {
		return fallback
	}
	d, err := time.ParseDuration(*value)
	if err != nil {
		return fallback
	}
	return d
}

// GetQueueCapacity returns the queue_capacity value or the default.
func (c *Config) GetQueueCapacity() int {
	if c.QueueCapacity == nil {
		return tracker.DefaultConfig().QueueCapacity
	}
	return *c.QueueCapacity
}

// GetHistoryCapacity returns the history_capacity value or the default.
func (c *Config) GetHistoryCapacity() int {
	if c.HistoryCapacity == nil {
		return tracker.DefaultConfig().HistoryCapacity
	}
	return *c.HistoryCapacity
}

// GetDropPolicy returns the drop_policy value or the default.
func (c *Config) GetDropPolicy() tracker.DropPolicy {
	if c.DropPolicy == nil {
		return tracker.DefaultConfig().DropPolicy
	}
	return tracker.DropPolicy(*c.DropPolicy)
}

// GetDrainGrace returns the drain_grace value or the default.
func (c *Config) GetDrainGrace() time.Duration {
	return c.duration(c.DrainGrace, tracker.DefaultConfig().DrainGracePeriod)
}

// GetIdleTimeout returns the idle_timeout value or the default.
func (c *Config) GetIdleTimeout() time.Duration {
	return c.duration(c.IdleTimeout, tracker.DefaultConfig().IdleTimeout)
}

// GetRetentionWindow returns the retention_window value or the default.
func (c *Config) GetRetentionWindow() time.Duration {
	return c.duration(c.RetentionWindow, tracker.DefaultConfig().RetentionWindow)
}

// GetExportInterval returns the export_interval value or the default.
func (c *Config) GetExportInterval() time.Duration {
	return c.duration(c.ExportInterval, tracker.DefaultConfig().ExportInterval)
}

// GetStatsInterval returns the stats_interval value or the default.
func (c *Config) GetStatsInterval() time.Duration {
	return c.duration(c.StatsInterval, tracker.DefaultConfig().StatsInterval)
}

// GetDatabasePath returns the database_path value or the default.
func (c *Config) GetDatabasePath() string {
	if c.DatabasePath == nil || *c.DatabasePath == "" {
		return "skywatch.sqlite"
	}
	return *c.DatabasePath
}

// GetExportDir returns the export_dir value or the default.
func (c *Config) GetExportDir() string {
	if c.ExportDir == nil || *c.ExportDir == "" {
		return "exports"
	}
	return *c.ExportDir
}

// GetSignalThresholdDBm returns the signal_threshold_dbm value or the default.
func (c *Config) GetSignalThresholdDBm() float64 {
	if c.SignalThresholdDBm == nil {
		return -60.0
	}
	return *c.SignalThresholdDBm
}

// GetWiFiInterface returns the wifi_interface value or the default.
func (c *Config) GetWiFiInterface() string {
	if c.WiFiInterface == nil {
		return "wlan0"
	}
	return *c.WiFiInterface
}

// GetRFPort returns the rf_port value, empty when no RF sweep sensor
// is attached.
func (c *Config) GetRFPort() string {
	if c.RFPort == nil {
		return ""
	}
	return *c.RFPort
}

// GetListenAddr returns the listen_addr value or the default.
func (c *Config) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return ":8080"
	}
	return *c.ListenAddr
}

// TrackerConfig assembles the aggregation core's configuration from the
// loaded values.
func (c *Config) TrackerConfig() tracker.Config {
	return tracker.Config{
		QueueCapacity:    c.GetQueueCapacity(),
		HistoryCapacity:  c.GetHistoryCapacity(),
		IdleTimeout:      c.GetIdleTimeout(),
		RetentionWindow:  c.GetRetentionWindow(),
		DropPolicy:       c.GetDropPolicy(),
		DrainGracePeriod: c.GetDrainGrace(),
		ExportInterval:   c.GetExportInterval(),
		StatsInterval:    c.GetStatsInterval(),
	}
}
