// Package config loads the application configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Session   SessionConfig   `yaml:"session"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Seed      bool            `yaml:"seed" env:"KARMIC_SEED"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string `yaml:"host" env:"KARMIC_SERVER_HOST"`
	Port            int    `yaml:"port" env:"KARMIC_SERVER_PORT"`
	ReadTimeout     int    `yaml:"read_timeout"`
	WriteTimeout    int    `yaml:"write_timeout"`
	IdleTimeout     int    `yaml:"idle_timeout"`
	ShutdownTimeout int    `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects and tunes the storage backend. Driver is either
// "memory" or "postgres"; DSN is required for postgres. Timeouts and
// lifetimes are expressed in seconds.
type DatabaseConfig struct {
	Driver          string `yaml:"driver" env:"KARMIC_DB_DRIVER"`
	DSN             string `yaml:"dsn" env:"KARMIC_DB_DSN"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"`
}

// SessionConfig controls login session tokens.
type SessionConfig struct {
	Secret     string `yaml:"secret" env:"KARMIC_SESSION_SECRET"`
	TTLHours   int    `yaml:"ttl_hours" env:"KARMIC_SESSION_TTL_HOURS"`
	BcryptCost int    `yaml:"bcrypt_cost"`
}

// LoggingConfig controls log level, format and destination.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"KARMIC_LOG_LEVEL"`
	Format string `yaml:"format" env:"KARMIC_LOG_FORMAT"`
	Output string `yaml:"output" env:"KARMIC_LOG_OUTPUT"`
}

// RateLimitConfig throttles login attempts per client address.
type RateLimitConfig struct {
	LoginPerMinute int `yaml:"login_per_minute" env:"KARMIC_LOGIN_PER_MINUTE"`
	LoginBurst     int `yaml:"login_burst" env:"KARMIC_LOGIN_BURST"`
}

// Default returns the configuration used when no file or environment
// overrides are present: an in-memory store listening on :8080, with the
// demo accounts seeded. Set KARMIC_SEED=false to opt out of seeding.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15,
			WriteTimeout:    15,
			IdleTimeout:     60,
			ShutdownTimeout: 10,
		},
		Database: DatabaseConfig{
			Driver:          "memory",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
		},
		Session: SessionConfig{
			Secret:     "karmic-dev-secret",
			TTLHours:   24,
			BcryptCost: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute: 10,
			LoginBurst:     5,
		},
		Seed: true,
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// KARMIC_CONFIG, and environment overrides, in that order of precedence.
func Load() (*Config, error) {
	return LoadFromPath(os.Getenv("KARMIC_CONFIG"))
}

// LoadFromPath behaves like Load reading the YAML file at the given path.
// An empty path skips the file layer entirely.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := envdecode.Decode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("session secret is required")
	}
	if c.Session.TTLHours <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	return nil
}
