package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete GTFS configuration.
//
// This structure captures all configurable aspects of the tiered store:
//   - Logging configuration
//   - Tiering parameters (threshold, buffer, replication, block size)
//   - Metadata store selection and configuration (store-specific)
//   - Bulk store selection and configuration (store-specific)
//   - Metrics exposure
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (GTFS_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type. The Config
// struct contains type-specific sections (e.g., bulk.filesystem, bulk.s3)
// and only the section matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Tiering controls when files move from the metadata store to the bulk store
	Tiering TieringConfig `mapstructure:"tiering" yaml:"tiering"`

	// Metadata specifies the metadata store type and type-specific configuration
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`

	// Bulk specifies the bulk store type and type-specific configuration
	Bulk BulkConfig `mapstructure:"bulk" yaml:"bulk"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// TieringConfig holds the parameters of the write path.
type TieringConfig struct {
	// Threshold is the file size in bytes above which a file is migrated
	// to the bulk store
	Threshold int `mapstructure:"threshold" yaml:"threshold" validate:"required,gt=0"`

	// BufferSize is the default write buffer in bytes
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size" validate:"required,gt=0"`

	// Replication is forwarded to the bulk store for migrated files
	Replication int16 `mapstructure:"replication" yaml:"replication" validate:"required,gt=0"`

	// BlockSize is forwarded to the bulk store for migrated files
	BlockSize int64 `mapstructure:"block_size" yaml:"block_size" validate:"required,gt=0"`

	// WorkingDirectory resolves relative paths (default /user/<os user>)
	WorkingDirectory string `mapstructure:"working_directory" yaml:"working_directory,omitempty" validate:"omitempty,startswith=/"`
}

// MetadataConfig specifies metadata store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type MetadataConfig struct {
	// Type specifies which metadata store implementation to use
	// Valid values: memory, badger, bolt
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger bolt"`

	// Compress enables zstd compression of inline file payloads
	Compress bool `mapstructure:"compress" yaml:"compress"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory,omitempty"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`

	// Bolt contains bbolt-specific configuration
	// Only used when Type = "bolt"
	Bolt map[string]any `mapstructure:"bolt" yaml:"bolt,omitempty"`
}

// BulkConfig specifies bulk store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type BulkConfig struct {
	// Type specifies which bulk store implementation to use
	// Valid values: memory, filesystem, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory filesystem s3"`

	// RateLimit throttles bytes written to the bulk store
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory,omitempty"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem,omitempty"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
}

// RateLimitConfig limits bulk write throughput. Zero means unlimited.
type RateLimitConfig struct {
	// BytesPerSecond is the sustained write rate
	BytesPerSecond uint `mapstructure:"bytes_per_second" yaml:"bytes_per_second"`

	// Burst is the largest single grant in bytes (default: BytesPerSecond)
	Burst uint `mapstructure:"burst" yaml:"burst"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled starts the metrics server when true
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port of the metrics server
	Port int `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (GTFS_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the GTFS_ prefix and underscores
	// Example: GTFS_TIERING_THRESHOLD=8192
	v.SetEnvPrefix("GTFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys must be known to viper for AutomaticEnv to see them when the
	// config file does not mention them.
	for _, key := range []string{
		"logging.level", "logging.format", "logging.output",
		"tiering.threshold", "tiering.buffer_size", "tiering.replication",
		"tiering.block_size", "tiering.working_directory",
		"metadata.type", "metadata.compress",
		"bulk.type", "bulk.rate_limit.bytes_per_second", "bulk.rate_limit.burst",
		"metrics.enabled", "metrics.port",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/gtfs/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "gtfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "gtfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
