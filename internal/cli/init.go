// Package cli holds the initialization shared by the server and
// worker entrypoints.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"splitperfect/internal/config"
	"splitperfect/internal/log"
	"splitperfect/internal/storage"
)

// Bootstrap loads the optional .env file, installs the logger and
// returns the validated configuration. Exits on invalid configuration.
func Bootstrap() (*config.Config, *log.Logger) {
	// Optional in production, the environment is set by the deployment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Setup("info", "text").Error("load configuration failed", log.FieldError, err)
		os.Exit(1)
	}

	logger := log.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// OpenStore builds the configured storage backend or exits.
func OpenStore(cfg *config.Config, logger *log.Logger) storage.Store {
	store, err := storage.Open(cfg)
	if err != nil {
		logger.Error("open storage failed", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	logger.Info("storage ready", "backend", cfg.DataBackend)
	return store
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
