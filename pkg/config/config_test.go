package config

import (
	"os"
	"path/filepath"
	"testing"
)

// isolate points every config and data lookup at a temporary directory so
// tests never read the user's real files.
func isolate(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmpDir, "data"))
	return tmpDir
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	isolate(t)

	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"

metadata:
  type: "memory"

bulk:
  type: "memory"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Tiering.Threshold != 4096 {
		t.Errorf("Expected default threshold 4096, got %d", cfg.Tiering.Threshold)
	}
	if cfg.Tiering.BufferSize != 4096 {
		t.Errorf("Expected default buffer size 4096, got %d", cfg.Tiering.BufferSize)
	}
	if cfg.Tiering.Replication != 3 {
		t.Errorf("Expected default replication 3, got %d", cfg.Tiering.Replication)
	}
	if cfg.Tiering.BlockSize != 1<<26 {
		t.Errorf("Expected default block size 64MiB, got %d", cfg.Tiering.BlockSize)
	}
	if cfg.Metadata.Type != "memory" {
		t.Errorf("Expected metadata type 'memory', got %q", cfg.Metadata.Type)
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// No file in the isolated config dir: defaults only
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config without file: %v", err)
	}

	if cfg.Metadata.Type != "badger" {
		t.Errorf("Expected default metadata type 'badger', got %q", cfg.Metadata.Type)
	}
	if cfg.Bulk.Type != "filesystem" {
		t.Errorf("Expected default bulk type 'filesystem', got %q", cfg.Bulk.Type)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)

	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"
  format: [unterminated
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	isolate(t)

	configPath := writeConfig(t, "config.yaml", `
tiering:
  threshold: -5
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for negative threshold")
	}
}

func TestLoad_TOML(t *testing.T) {
	isolate(t)

	configPath := writeConfig(t, "config.toml", `
[logging]
level = "DEBUG"

[tiering]
threshold = 8192

[metadata]
type = "memory"

[bulk]
type = "memory"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Tiering.Threshold != 8192 {
		t.Errorf("Expected threshold 8192, got %d", cfg.Tiering.Threshold)
	}
}

func TestLoad_StoreSections(t *testing.T) {
	isolate(t)

	configPath := writeConfig(t, "config.yaml", `
metadata:
  type: "bolt"
  compress: true
  bolt:
    path: "/var/lib/gtfs/meta.db"

bulk:
  type: "s3"
  rate_limit:
    bytes_per_second: 1048576
  s3:
    bucket: "gtfs-bulk"
    region: "eu-west-1"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if !cfg.Metadata.Compress {
		t.Error("Expected metadata.compress to be true")
	}
	if got := cfg.Metadata.Bolt["path"]; got != "/var/lib/gtfs/meta.db" {
		t.Errorf("Expected bolt path from file, got %v", got)
	}
	if got := cfg.Bulk.S3["bucket"]; got != "gtfs-bulk" {
		t.Errorf("Expected bucket 'gtfs-bulk', got %v", got)
	}
	if got := cfg.Bulk.S3["region"]; got != "eu-west-1" {
		t.Errorf("Expected region from file to win over default, got %v", got)
	}
	if cfg.Bulk.RateLimit.BytesPerSecond != 1048576 {
		t.Errorf("Expected rate 1048576, got %d", cfg.Bulk.RateLimit.BytesPerSecond)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	isolate(t)

	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Tiering.Threshold <= 0 {
		t.Errorf("Expected positive default threshold, got %d", cfg.Tiering.Threshold)
	}
	if cfg.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if cfg.Tiering.WorkingDirectory != "" {
		t.Errorf("Expected empty working directory, got %q", cfg.Tiering.WorkingDirectory)
	}
}

func TestConfigExists(t *testing.T) {
	isolate(t)

	if ConfigExists() {
		t.Fatal("Expected no config in a fresh directory")
	}

	if err := InitConfigToPath(GetDefaultConfigPath(), false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}
	if !ConfigExists() {
		t.Error("Expected config to exist after init")
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	tmpDir := isolate(t)

	path := GetDefaultConfigPath()
	expected := filepath.Join(tmpDir, "config", "gtfs", "config.yaml")
	if path != expected {
		t.Errorf("Expected %q, got %q", expected, path)
	}
}

func TestGetConfigDir(t *testing.T) {
	tmpDir := isolate(t)
	t.Setenv("XDG_CONFIG_HOME", "")

	dir := GetConfigDir()
	if dir != filepath.Join(tmpDir, ".config", "gtfs") {
		t.Errorf("Expected ~/.config/gtfs, got %q", dir)
	}
	if filepath.Base(dir) != "gtfs" {
		t.Errorf("Expected directory name 'gtfs', got %q", filepath.Base(dir))
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	isolate(t)
	t.Setenv("GTFS_LOGGING_LEVEL", "ERROR")
	t.Setenv("GTFS_TIERING_THRESHOLD", "65536")
	t.Setenv("GTFS_METRICS_ENABLED", "true")

	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"

tiering:
  threshold: 4096

metadata:
  type: "memory"

bulk:
  type: "memory"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Tiering.Threshold != 65536 {
		t.Errorf("Expected threshold 65536 from env var, got %d", cfg.Tiering.Threshold)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Expected metrics enabled from env var")
	}
}
