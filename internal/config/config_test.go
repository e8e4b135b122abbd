package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return configPath
}

func TestLoadValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
data-portal:
  node:
    id: "node-a"
    language: "go"
    tags:
      env: "test"
  transport:
    enable_shared_memory: true
    max_message_size: 1048576
    region_size: 262144
    default_timeout: "2s"
    poll_interval: "500us"
  metrics:
    enabled: true
    listen: "0.0.0.0:9090"
    path: "/metrics"
  log:
    level: "debug"
    format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Node.ID != "node-a" {
		t.Errorf("Expected node ID node-a, got %s", cfg.Node.ID)
	}
	if cfg.Node.Language != "go" {
		t.Errorf("Expected node language go, got %s", cfg.Node.Language)
	}
	if cfg.Node.Hostname == "" {
		t.Error("Expected hostname to be auto-detected")
	}
	if cfg.Transport.MaxMessageSize != 1048576 {
		t.Errorf("Expected max message size 1048576, got %d", cfg.Transport.MaxMessageSize)
	}
	if cfg.Transport.RegionSize != 262144 {
		t.Errorf("Expected region size 262144, got %d", cfg.Transport.RegionSize)
	}
	if got := cfg.Transport.DefaultTimeoutDuration(); got != 2*time.Second {
		t.Errorf("Expected default timeout 2s, got %v", got)
	}
	if got := cfg.Transport.PollIntervalDuration(); got != 500*time.Microsecond {
		t.Errorf("Expected poll interval 500us, got %v", got)
	}
	if cfg.Metrics.Enabled != true {
		t.Errorf("Expected metrics enabled true, got %v", cfg.Metrics.Enabled)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Log.Level)
	}
}

func TestLoadDefaults(t *testing.T) {
	configPath := writeConfig(t, `
data-portal:
  node:
    id: "node-a"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Node.Language != "go" {
		t.Errorf("Expected default language go, got %s", cfg.Node.Language)
	}
	if !cfg.Transport.EnableSharedMemory {
		t.Error("Expected shared memory enabled by default")
	}
	if cfg.Transport.MaxMessageSize != 64*1024*1024 {
		t.Errorf("Expected default max message size 64MiB, got %d", cfg.Transport.MaxMessageSize)
	}
	if cfg.Transport.DefaultTimeout != "5s" {
		t.Errorf("Expected default timeout 5s, got %s", cfg.Transport.DefaultTimeout)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Expected default log format json, got %s", cfg.Log.Format)
	}
	if cfg.Metrics.Listen != ":9091" {
		t.Errorf("Expected default metrics listen :9091, got %s", cfg.Metrics.Listen)
	}
}

func TestLoadInvalidLogLevel(t *testing.T) {
	configPath := writeConfig(t, `
data-portal:
  log:
    level: "invalid"
`)

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for invalid log level, got nil")
	}
}

func TestLoadInvalidLanguage(t *testing.T) {
	configPath := writeConfig(t, `
data-portal:
  node:
    language: "cobol"
`)

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for invalid language, got nil")
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
data-portal:
  transport:
    default_timeout: "not-a-duration"
`)

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for invalid duration, got nil")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yml"); err == nil {
		t.Error("Expected error for missing config file, got nil")
	}
}
