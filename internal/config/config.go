// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// GlobalConfig represents the top-level static configuration.
// Maps to the `data-portal:` root key in YAML.
type GlobalConfig struct {
	Node      NodeConfig      `mapstructure:"node"`
	Transport TransportConfig `mapstructure:"transport"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// ─── Node Identity ───

// NodeConfig contains node identification settings.
type NodeConfig struct {
	ID               string            `mapstructure:"id"`       // Empty = machine-id auto-detect
	Language         string            `mapstructure:"language"` // rust | go | python | swift | unknown
	Hostname         string            `mapstructure:"hostname"` // Empty = os.Hostname()
	SharedMemoryName string            `mapstructure:"shared_memory_name"`
	Tags             map[string]string `mapstructure:"tags"`
}

// ─── Transport ───

// TransportConfig contains transport-layer settings.
type TransportConfig struct {
	EnableSharedMemory    bool   `mapstructure:"enable_shared_memory"`
	EnableOptimizedPath   bool   `mapstructure:"enable_optimized_path"`
	EnableCompression     bool   `mapstructure:"enable_compression"`
	EnableEncryption      bool   `mapstructure:"enable_encryption"`
	PerformanceMonitoring bool   `mapstructure:"performance_monitoring"`
	MaxMessageSize        int    `mapstructure:"max_message_size"`
	RegionSize            int    `mapstructure:"region_size"`
	DefaultTimeout        string `mapstructure:"default_timeout"` // e.g. "5s"
	PollInterval          string `mapstructure:"poll_interval"`   // e.g. "1ms"
}

// DefaultTimeoutDuration parses DefaultTimeout; validated at load time.
func (t *TransportConfig) DefaultTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(t.DefaultTimeout)
	return d
}

// PollIntervalDuration parses PollInterval; validated at load time.
func (t *TransportConfig) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(t.PollInterval)
	return d
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`  // MB
	MaxAgeDays int  `mapstructure:"max_age_days"` // Days
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `data-portal: ...`.
type configRoot struct {
	DataPortal GlobalConfig `mapstructure:"data-portal"`
}

// Load loads configuration from file.
// The YAML file uses `data-portal:` as root key; env vars use DATA_PORTAL_ prefix
// (e.g., DATA_PORTAL_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Environment variable overrides.
	// No explicit env prefix — the `data-portal.` key prefix naturally maps to `DATA_PORTAL_`
	// in env vars via the key replacer (e.g., key "data-portal.log.level" → env "DATA_PORTAL_LOG_LEVEL").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.DataPortal

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use "data-portal." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Node defaults
	v.SetDefault("data-portal.node.language", "go")

	// Transport defaults
	v.SetDefault("data-portal.transport.enable_shared_memory", true)
	v.SetDefault("data-portal.transport.enable_optimized_path", false)
	v.SetDefault("data-portal.transport.performance_monitoring", true)
	v.SetDefault("data-portal.transport.max_message_size", 64*1024*1024)
	v.SetDefault("data-portal.transport.region_size", 1024*1024)
	v.SetDefault("data-portal.transport.default_timeout", "5s")
	v.SetDefault("data-portal.transport.poll_interval", "1ms")

	// Metrics defaults
	v.SetDefault("data-portal.metrics.enabled", true)
	v.SetDefault("data-portal.metrics.listen", ":9091")
	v.SetDefault("data-portal.metrics.path", "/metrics")

	// Log defaults
	v.SetDefault("data-portal.log.level", "info")
	v.SetDefault("data-portal.log.format", "json")
	v.SetDefault("data-portal.log.outputs.file.enabled", false)
	v.SetDefault("data-portal.log.outputs.file.path", "/var/log/data-portal/data-portal.log")
	v.SetDefault("data-portal.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("data-portal.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("data-portal.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("data-portal.log.outputs.file.rotation.compress", true)
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}

	// ── Node hostname auto-detect ──
	if cfg.Node.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		cfg.Node.Hostname = hostname
	}

	// ── Node language validation ──
	switch cfg.Node.Language {
	case "rust", "go", "python", "swift", "unknown":
	default:
		return fmt.Errorf("invalid node language: %s (must be rust/go/python/swift/unknown)", cfg.Node.Language)
	}

	// ── Transport validation ──
	if cfg.Transport.MaxMessageSize <= 0 {
		return fmt.Errorf("transport.max_message_size must be positive, got %d", cfg.Transport.MaxMessageSize)
	}
	if cfg.Transport.RegionSize <= 0 {
		return fmt.Errorf("transport.region_size must be positive, got %d", cfg.Transport.RegionSize)
	}
	if _, err := time.ParseDuration(cfg.Transport.DefaultTimeout); err != nil {
		return fmt.Errorf("invalid transport.default_timeout: %w", err)
	}
	if _, err := time.ParseDuration(cfg.Transport.PollInterval); err != nil {
		return fmt.Errorf("invalid transport.poll_interval: %w", err)
	}

	return nil
}
