package main

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/JaimeStill/lectern/internal/callbacks"
	"github.com/JaimeStill/lectern/internal/config"
	"github.com/JaimeStill/lectern/internal/events"
	"github.com/JaimeStill/lectern/internal/executions"
	"github.com/JaimeStill/lectern/internal/infrastructure"
	"github.com/JaimeStill/lectern/internal/reconciler"
	"github.com/JaimeStill/lectern/internal/records"
	"github.com/JaimeStill/lectern/internal/services"
)

const shutdownTimeout = 5 * time.Second

var errUserRequired = errors.New("--user is required")

// commandContext lazily opens the infrastructure shared by all commands.
// Commands talk to the database directly; only the database system is started.
type commandContext struct {
	configFlag *string
	userFlag   *string

	once  sync.Once
	infra *infrastructure.Infrastructure
	err   error
}

func newCommandContext(configFlag, userFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		userFlag:   userFlag,
	}
}

func (c *commandContext) ensureInfra() (*infrastructure.Infrastructure, error) {
	c.once.Do(func() {
		cfg, err := config.LoadFile(strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.err = err
			return
		}

		infra, err := infrastructure.New(cfg)
		if err != nil {
			c.err = err
			return
		}

		if err := infra.Database.Start(infra.Lifecycle); err != nil {
			c.err = err
			return
		}
		infra.Lifecycle.WaitForStartup()

		if cfg.Events.Provider == events.ProviderLocal {
			rec := reconciler.New(records.New(infra.Database.Connection(), infra.Database.Dialect(), infra.Logger), infra.Logger)
			infra.Events.Subscribe(events.TopicTerminal, rec.HandlePayload)
		}

		c.infra = infra
	})
	return c.infra, c.err
}

func (c *commandContext) user() (string, error) {
	u := strings.TrimSpace(*c.userFlag)
	if u == "" {
		return "", errUserRequired
	}
	return u, nil
}

func (c *commandContext) records() (records.Store, error) {
	infra, err := c.ensureInfra()
	if err != nil {
		return nil, err
	}
	return records.New(infra.Database.Connection(), infra.Database.Dialect(), infra.Logger), nil
}

func (c *commandContext) bridge() (callbacks.Bridge, error) {
	infra, err := c.ensureInfra()
	if err != nil {
		return nil, err
	}
	return callbacks.New(
		infra.Database.Connection(),
		infra.Database.Dialect(),
		nil,
		services.RetryPolicy{},
		infra.Logger,
	), nil
}

func (c *commandContext) executions() (executions.System, error) {
	infra, err := c.ensureInfra()
	if err != nil {
		return nil, err
	}
	bridge, err := c.bridge()
	if err != nil {
		return nil, err
	}
	return executions.New(
		infra.Database.Connection(),
		infra.Database.Dialect(),
		infra.Events,
		infra.Logger,
		executions.WithReaper(bridge),
	), nil
}

func (c *commandContext) close() error {
	if c.infra == nil {
		return nil
	}
	return c.infra.Lifecycle.Shutdown(shutdownTimeout)
}
