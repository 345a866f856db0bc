package services

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/lectern/pkg/formatting"
)

// ServiceConfig holds connection and retry parameters for one collaborator.
type ServiceConfig struct {
	BaseURL           string `toml:"base_url"`
	Timeout           string `toml:"timeout"`
	RetryAttempts     int    `toml:"retry_attempts"`
	RetryInitialDelay string `toml:"retry_initial_delay"`
	RetryMaxDelay     string `toml:"retry_max_delay"`
	MaxInputSize      string `toml:"max_input_size"`
}

// ServiceEnv maps service config fields to environment variable names.
type ServiceEnv struct {
	BaseURL           string
	Timeout           string
	RetryAttempts     string
	RetryInitialDelay string
	RetryMaxDelay     string
	MaxInputSize      string
}

// NewServiceEnv derives environment variable names from prefix,
// e.g. LECTERN_EXTRACTION yields LECTERN_EXTRACTION_BASE_URL.
func NewServiceEnv(prefix string) *ServiceEnv {
	return &ServiceEnv{
		BaseURL:           prefix + "_BASE_URL",
		Timeout:           prefix + "_TIMEOUT",
		RetryAttempts:     prefix + "_RETRY_ATTEMPTS",
		RetryInitialDelay: prefix + "_RETRY_INITIAL_DELAY",
		RetryMaxDelay:     prefix + "_RETRY_MAX_DELAY",
		MaxInputSize:      prefix + "_MAX_INPUT_SIZE",
	}
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *ServiceConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// RetryInitialDelayDuration returns RetryInitialDelay as a time.Duration.
func (c *ServiceConfig) RetryInitialDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryInitialDelay)
	return d
}

// RetryMaxDelayDuration returns RetryMaxDelay as a time.Duration.
func (c *ServiceConfig) RetryMaxDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryMaxDelay)
	return d
}

// MaxInputSizeBytes returns MaxInputSize in bytes.
func (c *ServiceConfig) MaxInputSizeBytes() int64 {
	n, _ := formatting.ParseBytes(c.MaxInputSize)
	return n
}

// Retry returns the retry policy described by the config.
func (c *ServiceConfig) Retry() RetryPolicy {
	return RetryPolicy{
		Attempts:     c.RetryAttempts,
		InitialDelay: c.RetryInitialDelayDuration(),
		MaxDelay:     c.RetryMaxDelayDuration(),
	}
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ServiceConfig) Finalize(env *ServiceEnv) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ServiceConfig) Merge(overlay *ServiceConfig) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.RetryAttempts != 0 {
		c.RetryAttempts = overlay.RetryAttempts
	}
	if overlay.RetryInitialDelay != "" {
		c.RetryInitialDelay = overlay.RetryInitialDelay
	}
	if overlay.RetryMaxDelay != "" {
		c.RetryMaxDelay = overlay.RetryMaxDelay
	}
	if overlay.MaxInputSize != "" {
		c.MaxInputSize = overlay.MaxInputSize
	}
}

func (c *ServiceConfig) loadDefaults() {
	if c.Timeout == "" {
		c.Timeout = "60s"
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 5
	}
	if c.RetryInitialDelay == "" {
		c.RetryInitialDelay = "1s"
	}
	if c.RetryMaxDelay == "" {
		c.RetryMaxDelay = "10s"
	}
	if c.MaxInputSize == "" {
		c.MaxInputSize = "1MB"
	}
}

func (c *ServiceConfig) loadEnv(env *ServiceEnv) {
	set := func(name string, dst *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	set(env.BaseURL, &c.BaseURL)
	set(env.Timeout, &c.Timeout)
	if env.RetryAttempts != "" {
		if v := os.Getenv(env.RetryAttempts); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.RetryAttempts = n
			}
		}
	}
	set(env.RetryInitialDelay, &c.RetryInitialDelay)
	set(env.RetryMaxDelay, &c.RetryMaxDelay)
	set(env.MaxInputSize, &c.MaxInputSize)
}

func (c *ServiceConfig) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url required")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be positive")
	}
	for name, v := range map[string]string{
		"timeout":             c.Timeout,
		"retry_initial_delay": c.RetryInitialDelay,
		"retry_max_delay":     c.RetryMaxDelay,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if _, err := formatting.ParseBytes(c.MaxInputSize); err != nil {
		return fmt.Errorf("invalid max_input_size: %w", err)
	}
	return nil
}

// Config groups the collaborator services.
type Config struct {
	Extraction ServiceConfig `toml:"extraction"`
	Formatter  ServiceConfig `toml:"formatter"`
	Translator ServiceConfig `toml:"translator"`
	Speech     ServiceConfig `toml:"speech"`
}

// Env maps each collaborator to its environment variable names.
type Env struct {
	Extraction *ServiceEnv
	Formatter  *ServiceEnv
	Translator *ServiceEnv
	Speech     *ServiceEnv
}

// Finalize finalizes every collaborator config.
func (c *Config) Finalize(env *Env) error {
	if env == nil {
		env = &Env{}
	}
	for name, s := range map[string]struct {
		cfg *ServiceConfig
		env *ServiceEnv
	}{
		"extraction": {&c.Extraction, env.Extraction},
		"formatter":  {&c.Formatter, env.Formatter},
		"translator": {&c.Translator, env.Translator},
		"speech":     {&c.Speech, env.Speech},
	} {
		if err := s.cfg.Finalize(s.env); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	c.Extraction.Merge(&overlay.Extraction)
	c.Formatter.Merge(&overlay.Formatter)
	c.Translator.Merge(&overlay.Translator)
	c.Speech.Merge(&overlay.Speech)
}
