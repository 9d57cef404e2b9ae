package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestInitConfig_Success(t *testing.T) {
	isolate(t)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if configPath != GetDefaultConfigPath() {
		t.Errorf("Expected %q, got %q", GetDefaultConfigPath(), configPath)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	expectedSections := []string{
		"# GTFS Configuration File",
		"logging:",
		"tiering:",
		"metadata:",
		"bulk:",
		"metrics:",
	}
	for _, section := range expectedSections {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		t.Fatalf("Generated config is not valid YAML: %v", err)
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	isolate(t)

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' error, got: %v", err)
	}
}

func TestInitConfig_ForceOverwrite(t *testing.T) {
	isolate(t)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}
	if err := os.WriteFile(configPath, []byte("# stale\n"), 0644); err != nil {
		t.Fatalf("Failed to modify config: %v", err)
	}

	if _, err := InitConfig(true); err != nil {
		t.Fatalf("InitConfig with force failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	if strings.Contains(string(content), "# stale") {
		t.Error("Expected forced init to replace the file")
	}
}

func TestInitConfigToPath_Success(t *testing.T) {
	isolate(t)
	configPath := filepath.Join(t.TempDir(), "nested", "dir", "gtfs.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("Config file was not created: %v", err)
	}
}

func TestInitConfigToPath_AlreadyExists(t *testing.T) {
	isolate(t)
	configPath := filepath.Join(t.TempDir(), "gtfs.yaml")
	if err := os.WriteFile(configPath, []byte("logging: {}\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if err := InitConfigToPath(configPath, false); err == nil {
		t.Fatal("Expected error when file exists")
	}
}

func TestGenerateYAMLWithComments_ValidConfig(t *testing.T) {
	isolate(t)
	cfg := GetDefaultConfig()
	cfg.Tiering.Threshold = 12345

	content, err := generateYAMLWithComments(cfg)
	if err != nil {
		t.Fatalf("generateYAMLWithComments failed: %v", err)
	}

	if !strings.Contains(content, "threshold: 12345") {
		t.Errorf("Expected threshold value in output:\n%s", content)
	}
	if !strings.Contains(content, "# Tiering") {
		t.Error("Expected tiering comment block")
	}

	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(content), &parsed); err != nil {
		t.Fatalf("Generated content is not valid YAML: %v", err)
	}
	for _, key := range []string{"logging", "tiering", "metadata", "bulk", "metrics"} {
		if _, ok := parsed[key]; !ok {
			t.Errorf("Missing top-level key %q", key)
		}
	}
}

func TestGeneratedConfigIsLoadable(t *testing.T) {
	isolate(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Generated config failed to load: %v", err)
	}

	defaults := GetDefaultConfig()
	if cfg.Tiering != defaults.Tiering {
		t.Errorf("Tiering mismatch: got %+v, want %+v", cfg.Tiering, defaults.Tiering)
	}
	if cfg.Metadata.Type != defaults.Metadata.Type {
		t.Errorf("Metadata type mismatch: got %q, want %q", cfg.Metadata.Type, defaults.Metadata.Type)
	}
	if cfg.Bulk.Type != defaults.Bulk.Type {
		t.Errorf("Bulk type mismatch: got %q, want %q", cfg.Bulk.Type, defaults.Bulk.Type)
	}
	if cfg.Metrics != defaults.Metrics {
		t.Errorf("Metrics mismatch: got %+v, want %+v", cfg.Metrics, defaults.Metrics)
	}
}
