package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Storage backends selectable via STORE_BACKEND.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"3000"`
	AppURL    string `env:"APP_URL" default:"http://localhost:3000"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
	StaticDir string `env:"STATIC_DIR" default:"public"`

	StoreBackend string        `env:"STORE_BACKEND" default:"file"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" default:"5s"`
	DataFile     string        `env:"DATA_FILE" default:"data.json"`
	SQLitePath   string        `env:"SQLITE_PATH" default:"databoard.db"`
	DatabaseURL  string        `env:"DATABASE_URL"`
	RedisURL     string        `env:"REDIS_URL"`
	RedisKey     string        `env:"REDIS_KEY" default:"databoard:log"`

	MaxWebSocketConnections int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"1000"`
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv != "production"
}

// StoreLocation names where the selected backend keeps the log, for logging.
// The postgres URL is left out since it may carry credentials.
func (c *Config) StoreLocation() string {
	switch c.StoreBackend {
	case BackendFile:
		return c.DataFile
	case BackendSQLite:
		return c.SQLitePath
	case BackendRedis:
		return c.RedisKey
	default:
		return ""
	}
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.StoreBackend {
	case BackendFile:
		if cfg.DataFile == "" {
			return errors.New("DATA_FILE is required for the file backend")
		}
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite backend")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis backend")
		}
		if cfg.RedisKey == "" {
			return errors.New("REDIS_KEY must not be empty")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of file, sqlite, postgres, redis, got %q", cfg.StoreBackend)
	}

	if cfg.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive, got %s", cfg.StoreTimeout)
	}
	if cfg.MaxWebSocketConnections <= 0 {
		return fmt.Errorf("MAX_WEBSOCKET_CONNECTIONS must be positive, got %d", cfg.MaxWebSocketConnections)
	}

	return nil
}
