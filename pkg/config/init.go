package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// InitConfig writes a sample configuration to the default location.
//
// Parameters:
//   - force: Overwrite an existing file
//
// Returns the path of the written file.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration with all defaults applied
// to path, creating parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

type yamlSection struct {
	key     string
	comment string
	value   any
}

// generateYAMLWithComments renders cfg section by section, each preceded by
// a comment block.
func generateYAMLWithComments(cfg *Config) (string, error) {
	sections := []yamlSection{
		{
			key: "logging",
			comment: `Logging
  level:  DEBUG, INFO, WARN, ERROR
  format: text, json
  output: stdout, stderr, or a file path`,
			value: cfg.Logging,
		},
		{
			key: "tiering",
			comment: `Tiering
  Files up to threshold bytes stay inline in the metadata store. The write
  that would take a file past it moves the file to the bulk store.
  replication and block_size are passed to the bulk store unchanged.`,
			value: cfg.Tiering,
		},
		{
			key: "metadata",
			comment: `Metadata store
  type: memory, badger, bolt
  compress: zstd-compress inline file payloads`,
			value: cfg.Metadata,
		},
		{
			key: "bulk",
			comment: `Bulk store
  type: memory, filesystem, s3
  filesystem.volumes: objects are spread over the volumes by rendezvous hashing
  s3: region, bucket, key_prefix, endpoint, access_key_id, secret_access_key,
      force_path_style, part_size, max_retries
  rate_limit.bytes_per_second: 0 disables throttling`,
			value: cfg.Bulk,
		},
		{
			key:     "metrics",
			comment: `Prometheus metrics served at http://<host>:<port>/metrics`,
			value:   cfg.Metrics,
		},
	}

	var b strings.Builder
	b.WriteString("# GTFS Configuration File\n")
	b.WriteString("#\n")
	b.WriteString("# Every value can be overridden with a GTFS_<SECTION>_<KEY> environment\n")
	b.WriteString("# variable, e.g. GTFS_TIERING_THRESHOLD=8192.\n\n")

	for _, s := range sections {
		for _, line := range strings.Split(s.comment, "\n") {
			b.WriteString("# " + line + "\n")
		}
		out, err := yaml.Marshal(map[string]any{s.key: s.value})
		if err != nil {
			return "", fmt.Errorf("failed to marshal %s section: %w", s.key, err)
		}
		b.Write(out)
		b.WriteString("\n")
	}
	return b.String(), nil
}
