// Package config loads server configuration.
//
// Sources, later ones winning:
//
//	defaults
//	YAML file (optional, --config or TICKET_CONFIG)
//	.env in the working directory (optional)
//	environment variables
//
// cmd/server applies command-line flags on top.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the server configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Events   EventsConfig   `yaml:"events"`
	LogLevel string         `yaml:"log_level"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// AllowedOrigins feeds CORS. Empty falls back to the local dev frontends.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig selects the store.
type DatabaseConfig struct {
	// Driver is "sqlite3" or "mysql".
	Driver string `yaml:"driver"`
	// DSN is a file path for sqlite3 or a go-sql-driver DSN for mysql.
	DSN string `yaml:"dsn"`
}

// EventsConfig configures RabbitMQ publishing. An empty URL disables it.
type EventsConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "./data/tickets.db",
		},
		Events: EventsConfig{
			Exchange: "ticketing.events",
		},
		LogLevel: "info",
	}
}

// Load builds a Config. path may be empty, in which case TICKET_CONFIG is
// consulted; a missing file is only an error when it was named explicitly.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = os.Getenv("TICKET_CONFIG")
		explicit = path != ""
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.HTTP.Addr, "TICKET_HTTP_ADDR")
	setString(&c.Database.Driver, "TICKET_DB_DRIVER")
	setString(&c.Database.DSN, "TICKET_DB_DSN")
	setString(&c.Events.Exchange, "TICKET_EVENTS_EXCHANGE")
	setString(&c.LogLevel, "LOG_LEVEL")

	// Same lookup order as the other services: RABBITMQ_URL, then AMQP_URL.
	setString(&c.Events.URL, "AMQP_URL")
	setString(&c.Events.URL, "RABBITMQ_URL")

	if v := os.Getenv("TICKET_SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TICKET_SHUTDOWN_TIMEOUT: %w", err)
		}
		c.HTTP.ShutdownTimeout = d
	}
	if v := os.Getenv("TICKET_HTTP_WRITE_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TICKET_HTTP_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		c.HTTP.WriteTimeout = time.Duration(n) * time.Second
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Validate checks the fields the server cannot start without.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}
	if c.HTTP.Addr == "" {
		return errors.New("http addr is required")
	}
	return nil
}
