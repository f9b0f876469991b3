// Package config provides validation utilities for configuration values.
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validateConfig performs comprehensive validation of configuration values
func validateConfig(config *Config) error {
	var validationErrors []string

	if config.API.BaseURL == "" {
		validationErrors = append(validationErrors, "api.base_url cannot be empty")
	} else if u, err := url.Parse(config.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		validationErrors = append(validationErrors, fmt.Sprintf("api.base_url must be an absolute URL (got: %s)", config.API.BaseURL))
	}
	if config.API.Platform == "" {
		validationErrors = append(validationErrors, "api.platform cannot be empty")
	}
	if config.API.Timeout < 0 {
		validationErrors = append(validationErrors, "api.timeout must be non-negative")
	}

	if config.ScreenCache.Capacity < 0 {
		validationErrors = append(validationErrors, "screen_cache.capacity must be non-negative")
	}
	if config.ScreenCache.TTL < 0 {
		validationErrors = append(validationErrors, "screen_cache.ttl must be non-negative")
	}
	for pattern, ttl := range config.ScreenCache.PatternTTLs {
		if ttl < 0 {
			validationErrors = append(validationErrors, fmt.Sprintf("screen_cache.pattern_ttls.%s must be non-negative", pattern))
		}
	}

	if config.DataCache.Capacity < 0 {
		validationErrors = append(validationErrors, "data_cache.capacity must be non-negative")
	}
	if config.DataCache.TTL < 0 {
		validationErrors = append(validationErrors, "data_cache.ttl must be non-negative")
	}

	if config.Prefetch.Threshold < 0 {
		validationErrors = append(validationErrors, "prefetch.threshold must be non-negative")
	}
	if config.Optimistic.Timeout < 0 {
		validationErrors = append(validationErrors, "optimistic.timeout must be non-negative")
	}
	if config.PendingDelete.GraceWindow < 0 {
		validationErrors = append(validationErrors, "pending_delete.grace_window must be non-negative")
	}

	switch config.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
		// Valid
	default:
		validationErrors = append(validationErrors, fmt.Sprintf("logging.level must be one of: trace, debug, info, warn, error (got: %s)", config.Logging.Level))
	}
	switch config.Logging.Format {
	case "", "console", "json":
		// Valid
	default:
		validationErrors = append(validationErrors, fmt.Sprintf("logging.format must be 'console' or 'json' (got: %s)", config.Logging.Format))
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(validationErrors, "\n  - "))
	}

	return nil
}
