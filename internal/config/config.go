// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	MaxConnections       int64   `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP  int64   `env:"MAX_WEBSOCKET_CONNECTIONS_PER_IP" default:"32"`
	ConnectionRatePerIP  float64 `env:"WEBSOCKET_CONNECTION_RATE_PER_IP" default:"10"`
	ConnectionBurstPerIP int     `env:"WEBSOCKET_CONNECTION_BURST_PER_IP" default:"10"`
}

// Load reads configuration from a .env file (if present) and the process
// environment, then validates it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables only")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("MAX_WEBSOCKET_CONNECTIONS must be positive, got %d", c.MaxConnections)
	}
	if c.MaxConnectionsPerIP <= 0 {
		return fmt.Errorf("MAX_WEBSOCKET_CONNECTIONS_PER_IP must be positive, got %d", c.MaxConnectionsPerIP)
	}
	if c.ConnectionRatePerIP <= 0 {
		return fmt.Errorf("WEBSOCKET_CONNECTION_RATE_PER_IP must be positive, got %f", c.ConnectionRatePerIP)
	}
	if c.ConnectionBurstPerIP <= 0 {
		return fmt.Errorf("WEBSOCKET_CONNECTION_BURST_PER_IP must be positive, got %d", c.ConnectionBurstPerIP)
	}
	return nil
}

// IsDevelopment reports whether the app runs in development mode.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
