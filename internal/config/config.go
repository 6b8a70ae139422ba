// Package config loads application configuration from defaults, an optional
// YAML file and IC_-prefixed environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	// Embedded zone database so session.timezone works on minimal images.
	_ "time/tzdata"

	"github.com/bissquit/incident-commander/internal/summary"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
// A double underscore separates nesting levels: IC_SERVER__PORT.
const EnvPrefix = "IC_"

// Storage drivers.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config is the application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Storage  StorageConfig  `koanf:"storage"`
	Session  SessionConfig  `koanf:"session"`
	Share    ShareConfig    `koanf:"share"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	CORS     CORSConfig     `koanf:"cors"`
}

// ServerConfig configures the HTTP servers.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required,numeric"`
	MetricsPort       string        `koanf:"metrics_port" validate:"required,numeric"`
	ReadTimeout       time.Duration `koanf:"read_timeout" validate:"gt=0"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gt=0"`
	WriteTimeout      time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout       time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig configures the PostgreSQL connection pool.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout" validate:"gt=0"`
	ConnectAttempts int           `koanf:"connect_attempts" validate:"gte=1"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// StorageConfig selects the incident store and tunes the background writer.
type StorageConfig struct {
	Driver        string        `koanf:"driver" validate:"oneof=memory postgres"`
	FlushInterval time.Duration `koanf:"flush_interval" validate:"gt=0"`
	SaveTimeout   time.Duration `koanf:"save_timeout" validate:"gt=0"`
}

// SessionConfig configures the incident session.
type SessionConfig struct {
	TickInterval  time.Duration `koanf:"tick_interval" validate:"gt=0"`
	LoadTimeout   time.Duration `koanf:"load_timeout" validate:"gt=0"`
	Timezone      string        `koanf:"timezone"`
	SummarySize   int           `koanf:"summary_size" validate:"gte=0"`
	SummaryFormat string        `koanf:"summary_format"`
	InitialPath   string        `koanf:"initial_path"`
}

// Location returns the display time zone. An empty Timezone means Local.
func (c SessionConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ShareConfig configures posting summaries to a chat webhook.
// Sharing is disabled when WebhookURL is empty.
type ShareConfig struct {
	WebhookURL string        `koanf:"webhook_url" validate:"omitempty,url"`
	Username   string        `koanf:"username"`
	IconURL    string        `koanf:"icon_url" validate:"omitempty,url"`
	Channel    string        `koanf:"channel"`
	Timeout    time.Duration `koanf:"timeout" validate:"gt=0"`
	// RateLimit is the sustained number of shares allowed per minute.
	RateLimit float64 `koanf:"rate_limit" validate:"gte=0"`
	Burst     int     `koanf:"burst" validate:"gte=0"`
}

// Enabled reports whether a webhook is configured.
func (c ShareConfig) Enabled() bool {
	return c.WebhookURL != ""
}

// CatalogEntry is a configured priority or status.
type CatalogEntry struct {
	ID    string `koanf:"id" validate:"required"`
	Label string `koanf:"label" validate:"required"`
}

// CatalogConfig overrides the built-in priorities and statuses.
// An empty list keeps the built-in one.
type CatalogConfig struct {
	Priorities []CatalogEntry `koanf:"priorities" validate:"dive"`
	Statuses   []CatalogEntry `koanf:"statuses" validate:"dive"`
}

// CORSConfig configures cross-origin requests.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			Driver:        StorageMemory,
			FlushInterval: 5 * time.Second,
			SaveTimeout:   10 * time.Second,
		},
		Session: SessionConfig{
			TickInterval:  30 * time.Second,
			LoadTimeout:   15 * time.Second,
			SummarySize:   summary.DefaultSize,
			SummaryFormat: summary.FormatCompact,
		},
		Share: ShareConfig{
			Timeout:   10 * time.Second,
			RateLimit: 6,
			Burst:     2,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment are used.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envKey maps IC_SHARE__WEBHOOK_URL to share.webhook_url.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Storage.Driver == StoragePostgres && c.Database.URL == "" {
		return errors.New("invalid config: database.url is required for the postgres storage driver")
	}

	if !summary.IsValidFormat(c.Session.SummaryFormat) {
		return fmt.Errorf("invalid config: session.summary_format %q must be one of %s",
			c.Session.SummaryFormat, strings.Join(summary.Formats(), ", "))
	}

	if _, err := c.Session.Location(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}
