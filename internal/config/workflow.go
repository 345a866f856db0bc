package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/lectern/internal/orchestrator"
	"github.com/JaimeStill/lectern/pkg/formatting"
)

const (
	EnvWorkflowExecutionTimeout = "LECTERN_WORKFLOW_EXECUTION_TIMEOUT"
	EnvWorkflowTokenTTL         = "LECTERN_WORKFLOW_TOKEN_TTL"
	EnvWorkflowWatchdogInterval = "LECTERN_WORKFLOW_WATCHDOG_INTERVAL"
	EnvWorkflowMaxConcurrent    = "LECTERN_WORKFLOW_MAX_CONCURRENT"
	EnvWorkflowSyncPageLimit    = "LECTERN_WORKFLOW_SYNC_PAGE_LIMIT"
	EnvWorkflowSyncSizeLimit    = "LECTERN_WORKFLOW_SYNC_SIZE_LIMIT"
	EnvWorkflowVoice            = "LECTERN_WORKFLOW_VOICE"
)

// WorkflowConfig tunes run execution.
type WorkflowConfig struct {
	ExecutionTimeout string `toml:"execution_timeout"`
	TokenTTL         string `toml:"token_ttl"`
	WatchdogInterval string `toml:"watchdog_interval"`
	MaxConcurrent    int64  `toml:"max_concurrent"`
	SyncPageLimit    int    `toml:"sync_page_limit"`
	SyncSizeLimit    string `toml:"sync_size_limit"`
	Voice            string `toml:"voice"`
}

// ExecutionTimeoutDuration returns ExecutionTimeout as a time.Duration.
func (c *WorkflowConfig) ExecutionTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ExecutionTimeout)
	return d
}

// TokenTTLDuration returns TokenTTL as a time.Duration.
func (c *WorkflowConfig) TokenTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TokenTTL)
	return d
}

// WatchdogIntervalDuration returns WatchdogInterval as a time.Duration.
func (c *WorkflowConfig) WatchdogIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.WatchdogInterval)
	return d
}

// SyncSizeLimitBytes returns SyncSizeLimit in bytes.
func (c *WorkflowConfig) SyncSizeLimitBytes() int64 {
	n, _ := formatting.ParseBytes(c.SyncSizeLimit)
	return n
}

// Settings converts the config into orchestrator settings.
func (c *WorkflowConfig) Settings() orchestrator.Settings {
	return orchestrator.Settings{
		ExecutionTimeout: c.ExecutionTimeoutDuration(),
		TokenTTL:         c.TokenTTLDuration(),
		MaxConcurrent:    c.MaxConcurrent,
		SyncPageLimit:    c.SyncPageLimit,
		SyncSizeLimit:    c.SyncSizeLimitBytes(),
		Voice:            c.Voice,
	}
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *WorkflowConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *WorkflowConfig) Merge(overlay *WorkflowConfig) {
	if overlay.ExecutionTimeout != "" {
		c.ExecutionTimeout = overlay.ExecutionTimeout
	}
	if overlay.TokenTTL != "" {
		c.TokenTTL = overlay.TokenTTL
	}
	if overlay.WatchdogInterval != "" {
		c.WatchdogInterval = overlay.WatchdogInterval
	}
	if overlay.MaxConcurrent != 0 {
		c.MaxConcurrent = overlay.MaxConcurrent
	}
	if overlay.SyncPageLimit != 0 {
		c.SyncPageLimit = overlay.SyncPageLimit
	}
	if overlay.SyncSizeLimit != "" {
		c.SyncSizeLimit = overlay.SyncSizeLimit
	}
	if overlay.Voice != "" {
		c.Voice = overlay.Voice
	}
}

func (c *WorkflowConfig) loadDefaults() {
	if c.ExecutionTimeout == "" {
		c.ExecutionTimeout = "24h"
	}
	if c.TokenTTL == "" {
		c.TokenTTL = "6h"
	}
	if c.WatchdogInterval == "" {
		c.WatchdogInterval = "30s"
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 16
	}
	if c.SyncPageLimit == 0 {
		c.SyncPageLimit = 2
	}
	if c.SyncSizeLimit == "" {
		c.SyncSizeLimit = "1MB"
	}
	if c.Voice == "" {
		c.Voice = "default"
	}
}

func (c *WorkflowConfig) loadEnv() {
	if v := os.Getenv(EnvWorkflowExecutionTimeout); v != "" {
		c.ExecutionTimeout = v
	}
	if v := os.Getenv(EnvWorkflowTokenTTL); v != "" {
		c.TokenTTL = v
	}
	if v := os.Getenv(EnvWorkflowWatchdogInterval); v != "" {
		c.WatchdogInterval = v
	}
	if v := os.Getenv(EnvWorkflowMaxConcurrent); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxConcurrent = n
		}
	}
	if v := os.Getenv(EnvWorkflowSyncPageLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SyncPageLimit = n
		}
	}
	if v := os.Getenv(EnvWorkflowSyncSizeLimit); v != "" {
		c.SyncSizeLimit = v
	}
	if v := os.Getenv(EnvWorkflowVoice); v != "" {
		c.Voice = v
	}
}

func (c *WorkflowConfig) validate() error {
	for name, v := range map[string]string{
		"execution_timeout": c.ExecutionTimeout,
		"token_ttl":         c.TokenTTL,
		"watchdog_interval": c.WatchdogInterval,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1")
	}
	if c.SyncPageLimit < 1 {
		return fmt.Errorf("sync_page_limit must be at least 1")
	}
	if _, err := formatting.ParseBytes(c.SyncSizeLimit); err != nil {
		return fmt.Errorf("invalid sync_size_limit: %w", err)
	}
	return nil
}
