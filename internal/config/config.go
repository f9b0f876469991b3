// Package config provides configuration management for screenflow with Viper integration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// File permission constants
const (
	dirPerm  = 0755 // Standard directory permissions (rwxr-xr-x)
	filePerm = 0644 // Standard file permissions (rw-r--r--)
)

// Config represents the complete configuration for screenflow.
type Config struct {
	API           APIConfig           `mapstructure:"api" yaml:"api"`
	ScreenCache   ScreenCacheConfig   `mapstructure:"screen_cache" yaml:"screen_cache"`
	DataCache     DataCacheConfig     `mapstructure:"data_cache" yaml:"data_cache"`
	Prefetch      PrefetchConfig      `mapstructure:"prefetch" yaml:"prefetch"`
	Optimistic    OptimisticConfig    `mapstructure:"optimistic" yaml:"optimistic"`
	PendingDelete PendingDeleteConfig `mapstructure:"pending_delete" yaml:"pending_delete"`
	Logging       LoggingConfig       `mapstructure:"logging" yaml:"logging"`
}

// APIConfig holds backend connection configuration.
type APIConfig struct {
	BaseURL  string        `mapstructure:"base_url" yaml:"base_url"`
	Platform string        `mapstructure:"platform" yaml:"platform"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ScreenCacheConfig holds screen definition cache configuration.
// PatternTTLs maps a screen pattern name to its TTL; patterns absent from
// the map use TTL. A zero duration disables caching for that pattern.
type ScreenCacheConfig struct {
	Capacity    int                      `mapstructure:"capacity" yaml:"capacity"`
	TTL         time.Duration            `mapstructure:"ttl" yaml:"ttl"`
	PatternTTLs map[string]time.Duration `mapstructure:"pattern_ttls" yaml:"pattern_ttls"`
}

// DataCacheConfig holds remote data cache configuration.
type DataCacheConfig struct {
	Capacity int           `mapstructure:"capacity" yaml:"capacity"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// PrefetchConfig holds scroll-prefetch configuration.
type PrefetchConfig struct {
	Threshold int `mapstructure:"threshold" yaml:"threshold"`
}

// OptimisticConfig holds optimistic update configuration.
type OptimisticConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// PendingDeleteConfig holds undo-window configuration for destructive actions.
type PendingDeleteConfig struct {
	GraceWindow time.Duration `mapstructure:"grace_window" yaml:"grace_window"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Manager handles configuration loading, watching, and reloading.
type Manager struct {
	config    *Config
	viper     *viper.Viper
	mu        sync.RWMutex
	callbacks []func(*Config)
	watching  bool
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	v := viper.New()

	// Configure Viper - supports yaml, json, toml automatically
	v.SetConfigName("config")

	configDir, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Current directory for development

	v.SetEnvPrefix("SCREENFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"api.base_url":                "API_BASE_URL",
		"api.platform":                "API_PLATFORM",
		"api.timeout":                 "API_TIMEOUT",
		"screen_cache.capacity":       "SCREEN_CACHE_CAPACITY",
		"screen_cache.ttl":            "SCREEN_CACHE_TTL",
		"data_cache.capacity":         "DATA_CACHE_CAPACITY",
		"data_cache.ttl":              "DATA_CACHE_TTL",
		"prefetch.threshold":          "PREFETCH_THRESHOLD",
		"optimistic.timeout":          "OPTIMISTIC_TIMEOUT",
		"pending_delete.grace_window": "PENDING_DELETE_GRACE_WINDOW",
		"logging.level":               "LOGGING_LEVEL",
		"logging.format":              "LOGGING_FORMAT",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, "SCREENFLOW_"+env); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable %s: %w", env, err)
		}
	}

	return &Manager{
		viper:     v,
		callbacks: make([]func(*Config), 0),
	}, nil
}

// Load loads the configuration from file and environment variables.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to ensure directories: %w", err)
	}

	m.setDefaults()

	if err := m.viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create default one and read it back so
			// the watcher has a concrete file to follow.
			if err := m.createDefaultConfig(); err != nil {
				return fmt.Errorf("failed to create default config: %w", err)
			}
			if err := m.viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		} else {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config, err := m.unmarshal()
	if err != nil {
		return err
	}

	m.config = config
	return nil
}

// Get returns the current configuration (thread-safe).
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to prevent external modification
	configCopy := *m.config
	return &configCopy
}

// Watch starts watching the config file for changes and reloads automatically.
func (m *Manager) Watch() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watching {
		return nil
	}

	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(_ fsnotify.Event) {
		if err := m.reload(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to reload config: %v\n", err)
			return
		}

		m.mu.RLock()
		config := m.config
		callbacks := make([]func(*Config), len(m.callbacks))
		copy(callbacks, m.callbacks)
		m.mu.RUnlock()

		for _, callback := range callbacks {
			callback(config)
		}
	})

	m.watching = true
	return nil
}

// OnConfigChange registers a callback function to be called when config changes.
func (m *Manager) OnConfigChange(callback func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callbacks = append(m.callbacks, callback)
}

// reload reloads the configuration after a file change.
func (m *Manager) reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.viper.ReadInConfig(); err != nil {
		return err
	}

	config, err := m.unmarshal()
	if err != nil {
		return err
	}

	m.config = config
	return nil
}

// unmarshal decodes, normalizes and validates the current viper state.
// Must be called with the lock held.
func (m *Manager) unmarshal() (*Config, error) {
	config := &Config{}
	if err := m.viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.API.BaseURL = strings.TrimRight(config.API.BaseURL, "/")
	config.Logging.Level = strings.ToLower(config.Logging.Level)
	config.Logging.Format = strings.ToLower(config.Logging.Format)

	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// setDefaults sets default configuration values in Viper.
func (m *Manager) setDefaults() {
	defaults := DefaultConfig()

	m.viper.SetDefault("api.base_url", defaults.API.BaseURL)
	m.viper.SetDefault("api.platform", defaults.API.Platform)
	m.viper.SetDefault("api.timeout", defaults.API.Timeout)

	m.viper.SetDefault("screen_cache.capacity", defaults.ScreenCache.Capacity)
	m.viper.SetDefault("screen_cache.ttl", defaults.ScreenCache.TTL)
	m.viper.SetDefault("screen_cache.pattern_ttls", defaults.ScreenCache.PatternTTLs)

	m.viper.SetDefault("data_cache.capacity", defaults.DataCache.Capacity)
	m.viper.SetDefault("data_cache.ttl", defaults.DataCache.TTL)

	m.viper.SetDefault("prefetch.threshold", defaults.Prefetch.Threshold)
	m.viper.SetDefault("optimistic.timeout", defaults.Optimistic.Timeout)
	m.viper.SetDefault("pending_delete.grace_window", defaults.PendingDelete.GraceWindow)

	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)
}

// createDefaultConfig creates a default configuration file.
func (m *Manager) createDefaultConfig() error {
	configFile, err := GetConfigFile()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configFile), dirPerm); err != nil {
		return err
	}

	defaultConfig := DefaultConfig()

	configData, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.WriteFile(configFile, configData, filePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created default configuration file: %s\n", configFile)
	return nil
}

// GetConfigFile returns the path to the configuration file being used.
func (m *Manager) GetConfigFile() string {
	return m.viper.ConfigFileUsed()
}
