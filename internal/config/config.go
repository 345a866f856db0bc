package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/JaimeStill/lectern/internal/events"
	"github.com/JaimeStill/lectern/internal/services"
	"github.com/JaimeStill/lectern/pkg/database"
	"github.com/JaimeStill/lectern/pkg/storage"
	"github.com/pelletier/go-toml/v2"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvLecternEnv             = "LECTERN_ENV"
	EnvLecternShutdownTimeout = "LECTERN_SHUTDOWN_TIMEOUT"
	EnvLecternVersion         = "LECTERN_VERSION"
)

var databaseEnv = &database.Env{
	Driver:          "LECTERN_DB_DRIVER",
	Host:            "LECTERN_DB_HOST",
	Port:            "LECTERN_DB_PORT",
	Name:            "LECTERN_DB_NAME",
	User:            "LECTERN_DB_USER",
	Password:        "LECTERN_DB_PASSWORD",
	SSLMode:         "LECTERN_DB_SSL_MODE",
	Path:            "LECTERN_DB_PATH",
	MaxConns:        "LECTERN_DB_MAX_CONNS",
	MinConns:        "LECTERN_DB_MIN_CONNS",
	ConnMaxLifetime: "LECTERN_DB_CONN_MAX_LIFETIME",
	ConnMaxIdleTime: "LECTERN_DB_CONN_MAX_IDLE_TIME",
	ConnTimeout:     "LECTERN_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Provider:         "LECTERN_STORAGE_PROVIDER",
	ContainerName:    "LECTERN_STORAGE_CONTAINER_NAME",
	ConnectionString: "LECTERN_STORAGE_CONNECTION_STRING",
	AccountURL:       "LECTERN_STORAGE_ACCOUNT_URL",
	Root:             "LECTERN_STORAGE_ROOT",
}

var eventsEnv = &events.Env{
	Provider:       "LECTERN_EVENTS_PROVIDER",
	ReconnectDelay: "LECTERN_EVENTS_RECONNECT_DELAY",
}

var servicesEnv = &services.Env{
	Extraction: services.NewServiceEnv("LECTERN_EXTRACTION"),
	Formatter:  services.NewServiceEnv("LECTERN_FORMATTER"),
	Translator: services.NewServiceEnv("LECTERN_TRANSLATOR"),
	Speech:     services.NewServiceEnv("LECTERN_SPEECH"),
}

// Config is the root configuration for the Lectern service.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	Logging         LoggingConfig   `toml:"logging"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	API             APIConfig       `toml:"api"`
	Events          events.Config   `toml:"events"`
	Workflow        WorkflowConfig  `toml:"workflow"`
	Services        services.Config `toml:"services"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the LECTERN_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvLecternEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	return LoadFile(BaseConfigFile)
}

// LoadFile is Load with an explicit base config path. The overlay is
// resolved next to the base file.
func LoadFile(base string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(base); err == nil {
		loaded, err := load(base)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(filepath.Dir(base)); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Logging.Merge(&overlay.Logging)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Events.Merge(&overlay.Events)
	c.Workflow.Merge(&overlay.Workflow)
	c.Services.Merge(&overlay.Services)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Logging.Finalize(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Events.Finalize(eventsEnv); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	if err := c.Workflow.Finalize(); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	if err := c.Services.Finalize(servicesEnv); err != nil {
		return fmt.Errorf("services: %w", err)
	}
	if c.Events.Provider == events.ProviderPostgres && c.Database.Driver != database.DriverPostgres {
		return fmt.Errorf("events: postgres provider requires the postgres database driver")
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvLecternShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvLecternVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath(dir string) string {
	if env := os.Getenv(EnvLecternEnv); env != "" {
		path := filepath.Join(dir, fmt.Sprintf(OverlayConfigPattern, env))
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
