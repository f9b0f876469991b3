// Package cli holds the shared application context for CLI commands.
package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/screenflow/screenflow/internal/config"
	"github.com/screenflow/screenflow/internal/engine"
	"github.com/screenflow/screenflow/internal/logging"
)

// BuildInfo carries version metadata injected at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// App is the shared context initialized once per CLI invocation.
type App struct {
	Config    *config.Config
	Manager   *config.Manager
	Engine    *engine.Engine
	Log       zerolog.Logger
	BuildInfo BuildInfo
}

// NewApp loads configuration and wires the engine.
func NewApp() (*App, error) {
	manager, err := config.NewManager()
	if err != nil {
		return nil, fmt.Errorf("create config manager: %w", err)
	}
	if err := manager.Load(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := manager.Get()

	log := logging.New(logging.Config{
		Level:      logging.ParseLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		TimeFormat: time.RFC3339,
	})

	// Follow config file edits for the lifetime of the process. One-shot
	// commands exit before a reload matters; long-running embeddings pick up
	// changes without a restart.
	manager.OnConfigChange(func(_ *config.Config) {
		log.Info().Str("config_file", manager.GetConfigFile()).Msg("configuration reloaded")
	})
	if err := manager.Watch(); err != nil {
		log.Warn().Err(err).Msg("config watch unavailable")
	}

	return &App{
		Config:  cfg,
		Manager: manager,
		Engine:  engine.New(cfg, log),
		Log:     log,
	}, nil
}
