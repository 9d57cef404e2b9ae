package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if cfg.Bulk.RateLimit.Burst > 0 && cfg.Bulk.RateLimit.BytesPerSecond == 0 {
		return fmt.Errorf("bulk.rate_limit: burst is set but bytes_per_second is 0")
	}

	switch cfg.Metadata.Type {
	case "badger":
		if v, ok := cfg.Metadata.Badger["in_memory"].(bool); !ok || !v {
			if s, _ := cfg.Metadata.Badger["db_path"].(string); s == "" {
				return fmt.Errorf("metadata.badger: db_path is required")
			}
		}
	case "bolt":
		if s, _ := cfg.Metadata.Bolt["path"].(string); s == "" {
			return fmt.Errorf("metadata.bolt: path is required")
		}
	}

	if cfg.Bulk.Type == "s3" {
		if s, _ := cfg.Bulk.S3["bucket"].(string); s == "" {
			return fmt.Errorf("bulk.s3: bucket is required")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
