package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working directory.
const FileName = "openlets.yaml"

// Config represents the top-level openlets.yaml configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Events EventsConfig `yaml:"events"`
	Ledger LedgerConfig `yaml:"ledger"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
}

// StoreConfig selects and tunes the ledger store.
type StoreConfig struct {
	Driver      string `yaml:"driver"` // "memory" or "postgres"
	DatabaseURL string `yaml:"database_url,omitempty"`
	MaxConns    int32  `yaml:"max_conns"`
	MinConns    int32  `yaml:"min_conns"`
}

// EventsConfig selects where workflow events are published.
type EventsConfig struct {
	Driver        string   `yaml:"driver"` // "none", "redis", "kafka" or "csv"
	RedisAddr     string   `yaml:"redis_addr,omitempty"`
	RedisPassword string   `yaml:"redis_password,omitempty"`
	RedisChannel  string   `yaml:"redis_channel,omitempty"`
	KafkaBrokers  []string `yaml:"kafka_brokers,omitempty"`
	KafkaTopic    string   `yaml:"kafka_topic,omitempty"`
	LogPath       string   `yaml:"log_path,omitempty"`
	// BreakerFailures consecutive publish failures pause a remote publisher
	// for BreakerCooldown.
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// LedgerConfig holds workflow defaults.
type LedgerConfig struct {
	NotificationDays int   `yaml:"notification_days"`
	RecentDays       int   `yaml:"recent_days"`
	RecentLimit      int   `yaml:"recent_limit"`
	DefaultSiteID    int64 `yaml:"default_site_id"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Load reads an openlets.yaml file from disk. Keys missing from the file
// keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config that runs a self-contained server on the
// in-memory store.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			RequestTimeout:    30 * time.Second,
			AllowedOrigins:    []string{"*"},
		},
		Store: StoreConfig{
			Driver:   "memory",
			MaxConns: 10,
			MinConns: 2,
		},
		Events: EventsConfig{
			Driver:       "none",
			RedisChannel: "openlets.events",
			KafkaTopic:   "openlets.events",

			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Ledger: LedgerConfig{
			NotificationDays: 3,
			RecentDays:       10,
			RecentLimit:      15,
			DefaultSiteID:    1,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Resolve builds the effective configuration: an optional .env file is
// loaded into the environment, then path is read if it exists, then
// environment overrides are applied.
func Resolve(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides config values from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("OPENLETS_ADDR", &c.Server.Addr)
	str("OPENLETS_STORE", &c.Store.Driver)
	str("DATABASE_URL", &c.Store.DatabaseURL)
	str("OPENLETS_EVENTS", &c.Events.Driver)
	str("REDIS_ADDR", &c.Events.RedisAddr)
	str("REDIS_PASS", &c.Events.RedisPassword)
	str("OPENLETS_EVENT_LOG", &c.Events.LogPath)
	str("OPENLETS_LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Events.KafkaBrokers = nil
		for b := range strings.SplitSeq(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.Events.KafkaBrokers = append(c.Events.KafkaBrokers, b)
			}
		}
	}
	if v, ok := lookup("OPENLETS_NOTIFICATION_DAYS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing OPENLETS_NOTIFICATION_DAYS: %w", err)
		}
		c.Ledger.NotificationDays = n
	}
	return nil
}

// Validate checks driver names and the settings each driver needs.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("store.database_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch c.Events.Driver {
	case "", "none":
	case "redis":
		if c.Events.RedisAddr == "" {
			return fmt.Errorf("events.redis_addr is required for the redis driver")
		}
	case "kafka":
		if len(c.Events.KafkaBrokers) == 0 {
			return fmt.Errorf("events.kafka_brokers is required for the kafka driver")
		}
	case "csv":
		if c.Events.LogPath == "" {
			return fmt.Errorf("events.log_path is required for the csv driver")
		}
	default:
		return fmt.Errorf("unknown events driver %q", c.Events.Driver)
	}

	if c.Ledger.NotificationDays < 0 || c.Ledger.RecentDays < 0 || c.Ledger.RecentLimit < 0 {
		return fmt.Errorf("ledger day and limit settings must not be negative")
	}
	return nil
}
