package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/linpawslitap/mds-scaling/pkg/tierfs"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTieringDefaults(&cfg.Tiering)
	applyMetadataDefaults(&cfg.Metadata)
	applyBulkDefaults(&cfg.Bulk)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTieringDefaults mirrors the tierfs package defaults.
func applyTieringDefaults(cfg *TieringConfig) {
	if cfg.Threshold == 0 {
		cfg.Threshold = tierfs.DefaultThreshold
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = tierfs.DefaultBufferSize
	}
	if cfg.Replication == 0 {
		cfg.Replication = tierfs.DefaultReplication
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = tierfs.DefaultBlockSize
	}
	// WorkingDirectory stays empty: tierfs derives it from the OS user.
}

// applyMetadataDefaults sets metadata store defaults.
func applyMetadataDefaults(cfg *MetadataConfig) {
	if cfg.Type == "" {
		cfg.Type = "badger"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.Bolt == nil {
		cfg.Bolt = make(map[string]any)
	}

	// Apply defaults for all store types (for config file generation)
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = filepath.Join(defaultDataDir(), "metadata")
	}
	if _, ok := cfg.Bolt["path"]; !ok {
		cfg.Bolt["path"] = filepath.Join(defaultDataDir(), "metadata.db")
	}
}

// applyBulkDefaults sets bulk store defaults.
func applyBulkDefaults(cfg *BulkConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	if _, ok := cfg.Filesystem["volumes"]; !ok {
		cfg.Filesystem["volumes"] = []string{filepath.Join(defaultDataDir(), "bulk")}
	}
	if _, ok := cfg.S3["region"]; !ok {
		cfg.S3["region"] = "us-east-1"
	}
}

// applyMetricsDefaults sets metrics server defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// defaultDataDir returns the directory persistent stores default to.
func defaultDataDir() string {
	return filepath.Join(getDataHome(), "gtfs")
}

func getDataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share")
	}
	return "."
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
