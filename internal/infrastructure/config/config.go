package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DefaultApplicationID is the Discord application registered for the launcher
const DefaultApplicationID = "1305247641252397059"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Presence  PresenceConfig
	Paths     PathsConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds control API configuration.
// The API is meant for the launcher UI, so it binds to loopback by default.
type ServerConfig struct {
	Port string `envconfig:"KEPLER_PORT" default:"7878"`
	Host string `envconfig:"KEPLER_HOST" default:"127.0.0.1"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// PresenceConfig holds Discord rich presence configuration.
type PresenceConfig struct {
	AppID   string        `envconfig:"DISCORD_APP_ID" default:"1305247641252397059"`
	Enabled bool          `envconfig:"PRESENCE_ENABLED" default:"true"`
	Timeout time.Duration `envconfig:"PRESENCE_TIMEOUT" default:"5s"`
}

// PathsConfig holds filesystem configuration.
type PathsConfig struct {
	// DataDir overrides the per-user data directory when set
	DataDir string `envconfig:"KEPLER_DATA_DIR"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds control API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"40"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load reads the given .env files (default ".env"), then environment variables.
// Missing .env files are ignored; variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects configurations the launcher cannot run with.
func (c *Config) Validate() error {
	if c.Presence.Enabled && c.Presence.AppID == "" {
		return errors.New("DISCORD_APP_ID is required when presence is enabled")
	}
	if c.Presence.Timeout <= 0 {
		return errors.New("PRESENCE_TIMEOUT must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "7878",
			Host: "127.0.0.1",
		},
		Presence: PresenceConfig{
			AppID:   DefaultApplicationID,
			Enabled: true,
			Timeout: 5 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
	}
}
