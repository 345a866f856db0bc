package api

import (
	"net/http"

	"github.com/JaimeStill/lectern/internal/config"
	"github.com/JaimeStill/lectern/internal/infrastructure"
	"github.com/JaimeStill/lectern/internal/services"
	"github.com/JaimeStill/lectern/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Workflow   config.WorkflowConfig
	Services   services.Config
	HTTPClient *http.Client
}

// NewRuntime creates an API runtime with a module-scoped logger.
// A nil HTTPClient lets each collaborator client apply its own timeout.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Storage:   infra.Storage,
			Events:    infra.Events,
		},
		Pagination: cfg.API.Pagination,
		Workflow:   cfg.Workflow,
		Services:   cfg.Services,
	}
}
