// Package config provides default configuration values for screenflow.
package config

import (
	"time"
)

// Default configuration constants
const (
	defaultAPITimeout = 10 * time.Second

	// Screen definitions change rarely; data is fresher.
	defaultScreenCacheCapacity = 50
	defaultScreenCacheTTL      = 30 * time.Minute
	defaultDataCacheCapacity   = 200
	defaultDataCacheTTL        = 5 * time.Minute

	defaultPrefetchThreshold = 5
	defaultOptimisticTimeout = 15 * time.Second
	defaultDeleteGraceWindow = 5 * time.Second
)

// DefaultConfig returns the default configuration values for screenflow.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:  "http://localhost:8080",
			Platform: "desktop",
			Timeout:  defaultAPITimeout,
		},
		ScreenCache: ScreenCacheConfig{
			Capacity: defaultScreenCacheCapacity,
			TTL:      defaultScreenCacheTTL,
			PatternTTLs: map[string]time.Duration{
				// Login screens are never cached.
				"login": 0,
			},
		},
		DataCache: DataCacheConfig{
			Capacity: defaultDataCacheCapacity,
			TTL:      defaultDataCacheTTL,
		},
		Prefetch: PrefetchConfig{
			Threshold: defaultPrefetchThreshold,
		},
		Optimistic: OptimisticConfig{
			Timeout: defaultOptimisticTimeout,
		},
		PendingDelete: PendingDeleteConfig{
			GraceWindow: defaultDeleteGraceWindow,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
