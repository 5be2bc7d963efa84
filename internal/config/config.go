// Package config loads runtime configuration from the environment.
//
// A .env file is honored for local development (loaded by the cmd
// entrypoints via godotenv before Parse runs).
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Supported DATA_BACKEND values.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	// HTTP server
	Port          string `env:"PORT" envDefault:"8080"`
	FrontendURL   string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	MaxUploadSize int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	// Database
	DataBackend  string `env:"DATA_BACKEND" envDefault:"sqlite"`
	SQLiteDBPath string `env:"SQLITE_DB_PATH" envDefault:"./data/splitperfect.db"`

	// Auth
	JWTSecret      string        `env:"JWT_SECRET"`
	JWTTTL         time.Duration `env:"JWT_TTL" envDefault:"720h"`
	GoogleClientID string        `env:"GOOGLE_CLIENT_ID"`

	// Blob storage for receipt images
	BlobDir string `env:"BLOB_DIR" envDefault:"./data/receipts"`

	// AMQP (optional; empty URL disables the event pipeline)
	AMQPURL        string `env:"AMQP_URL"`
	AMQPExchange   string `env:"AMQP_EXCHANGE" envDefault:"splitperfect"`
	AMQPParseQueue string `env:"AMQP_PARSE_QUEUE" envDefault:"receipt_parse"`

	// Summary cache
	SummaryCacheSize int           `env:"SUMMARY_CACHE_SIZE" envDefault:"256"`
	SummaryCacheTTL  time.Duration `env:"SUMMARY_CACHE_TTL" envDefault:"5m"`

	// Rate limiting
	RequestsPerMinute int `env:"REQUESTS_PER_MINUTE" envDefault:"120"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error describing
// every problem found.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case BackendMemory:
		// No storage configuration required.
	default:
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of [sqlite memory]", c.DataBackend))
	}

	if c.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET must be set")
	} else if len(c.JWTSecret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 bytes")
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, "JWT_TTL must be positive")
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPParseQueue == "" {
			errs = append(errs, "AMQP parse queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SummaryCacheSize <= 0 {
		errs = append(errs, "summary cache size must be positive")
	}
	if c.SummaryCacheTTL <= 0 {
		errs = append(errs, "summary cache TTL must be positive")
	}
	if c.RequestsPerMinute <= 0 {
		errs = append(errs, "requests per minute must be positive")
	}
	if c.MaxUploadSize <= 0 {
		errs = append(errs, "max upload size must be positive")
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// AMQPEnabled reports whether the async event pipeline is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}
