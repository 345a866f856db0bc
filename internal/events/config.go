package events

import (
	"fmt"
	"os"
	"time"
)

// Supported bus providers.
const (
	ProviderLocal    = "local"
	ProviderPostgres = "postgres"
)

// Config selects the event bus provider.
type Config struct {
	Provider       string `toml:"provider"`
	ReconnectDelay string `toml:"reconnect_delay"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Provider       string
	ReconnectDelay string
}

// ReconnectDelayDuration returns ReconnectDelay as a time.Duration.
func (c *Config) ReconnectDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.ReconnectDelay)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.ReconnectDelay != "" {
		c.ReconnectDelay = overlay.ReconnectDelay
	}
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	if c.ReconnectDelay == "" {
		c.ReconnectDelay = "2s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Provider != "" {
		if v := os.Getenv(env.Provider); v != "" {
			c.Provider = v
		}
	}
	if env.ReconnectDelay != "" {
		if v := os.Getenv(env.ReconnectDelay); v != "" {
			c.ReconnectDelay = v
		}
	}
}

func (c *Config) validate() error {
	if c.Provider != ProviderLocal && c.Provider != ProviderPostgres {
		return fmt.Errorf("unsupported provider: %q", c.Provider)
	}
	if _, err := time.ParseDuration(c.ReconnectDelay); err != nil {
		return fmt.Errorf("invalid reconnect_delay: %w", err)
	}
	return nil
}
