// Package config provides unified configuration loading for the extraction
// engine. Supports YAML files, environment variables, and programmatic
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the extraction engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Drafts        DraftsConfig        `yaml:"drafts"`
	Tokens        TokensConfig        `yaml:"tokens"`
	Engine        EngineConfig        `yaml:"engine"`
	Fetch         FetchConfig         `yaml:"fetch"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DraftsConfig holds draft store settings.
type DraftsConfig struct {
	// Backend selects where drafts live: sql or redis.
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
	Redis   RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection settings for the redis draft backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// TokensConfig holds draft-access token settings. A zero TTL means "mirror
// the draft TTL", keeping a valid token always pointed at an unswept draft.
type TokensConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// EngineConfig holds extraction engine (LLM) settings.
type EngineConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// FetchConfig holds content fetcher settings.
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	UserAgent    string        `yaml:"user_agent"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// AuthConfig holds caller authentication settings. Keys maps API keys to the
// owner id they authenticate as; with Enabled false the required X-Owner-ID
// header is trusted as the caller's identity (development only).
type AuthConfig struct {
	Enabled bool              `yaml:"enabled"`
	Keys    map[string]string `yaml:"keys"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json or console
}

// Load reads configuration from an optional YAML file, then applies
// EXTRACTOR_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the development defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     5 * time.Minute, // SSE responses stay open
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "extraction.db",
				MaxOpenConns: 1,
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 30 * time.Minute,
			},
		},
		Drafts: DraftsConfig{
			Backend: "sql",
			TTL:     time.Hour,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "xe:",
			},
		},
		Tokens: TokensConfig{},
		Engine: EngineConfig{
			Model: "gpt-4o-mini",
		},
		Fetch: FetchConfig{
			Timeout:      30 * time.Second,
			MaxBodyBytes: 4 << 20,
			UserAgent:    "platewise-extractor/1.0",
			MaxRetries:   2,
			RetryBackoff: 500 * time.Millisecond,
		},
		Auth: AuthConfig{Enabled: false},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Drafts.Backend {
	case "sql", "redis":
	default:
		return fmt.Errorf("unknown draft backend %q", c.Drafts.Backend)
	}
	if c.Drafts.TTL <= 0 {
		return fmt.Errorf("drafts.ttl must be positive")
	}
	if c.Tokens.TTL < 0 {
		return fmt.Errorf("tokens.ttl must not be negative")
	}
	if c.Auth.Enabled && len(c.Auth.Keys) == 0 {
		return fmt.Errorf("auth enabled but no keys configured")
	}
	return nil
}

// TokenTTL resolves the effective token TTL: configured value, or the draft
// TTL when unset. Tokens longer-lived than drafts would verify against
// already-swept records, so the default hard-links the two.
func (c *Config) TokenTTL() time.Duration {
	if c.Tokens.TTL > 0 {
		return c.Tokens.TTL
	}
	return c.Drafts.TTL
}

// DatabaseDSN returns the DSN for the configured driver.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "postgres" {
		return c.Database.Postgres.DSN
	}
	return c.Database.SQLite.Path
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EXTRACTOR_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("EXTRACTOR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("EXTRACTOR_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("EXTRACTOR_SQLITE_PATH"); v != "" {
		cfg.Database.SQLite.Path = v
	}
	if v := os.Getenv("EXTRACTOR_POSTGRES_DSN"); v != "" {
		cfg.Database.Postgres.DSN = v
	}
	if v := os.Getenv("EXTRACTOR_DRAFT_BACKEND"); v != "" {
		cfg.Drafts.Backend = v
	}
	if v := os.Getenv("EXTRACTOR_DRAFT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Drafts.TTL = d
		}
	}
	if v := os.Getenv("EXTRACTOR_REDIS_ADDR"); v != "" {
		cfg.Drafts.Redis.Addr = v
	}
	if v := os.Getenv("EXTRACTOR_TOKEN_SECRET"); v != "" {
		cfg.Tokens.Secret = v
	}
	if v := os.Getenv("EXTRACTOR_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Tokens.TTL = d
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Engine.APIKey = v
	}
	if v := os.Getenv("EXTRACTOR_MODEL"); v != "" {
		cfg.Engine.Model = v
	}
	if v := os.Getenv("EXTRACTOR_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("EXTRACTOR_LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
