package api

import (
	"net/http"

	"github.com/JaimeStill/lectern/internal/config"
	"github.com/JaimeStill/lectern/internal/executions"
	"github.com/JaimeStill/lectern/internal/export"
	"github.com/JaimeStill/lectern/pkg/openapi"
	"github.com/JaimeStill/lectern/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
	auth func(http.Handler) http.Handler,
) error {
	workflowRoutes := domain.Workflows.Handler(cfg.API.MaxUploadSizeBytes()).Routes()
	workflowRoutes.Children = append(
		workflowRoutes.Children,
		newArtifactHandler(domain.Records, runtime.Storage, runtime.Logger).routes(),
		export.NewHandler(export.New(domain.Records, runtime.Logger), runtime.Logger).Routes(),
	)

	authenticated := routes.Group{
		Middleware: []func(http.Handler) http.Handler{auth},
		Children: []routes.Group{
			workflowRoutes,
			executions.NewHandler(domain.Executions, runtime.Logger).Routes(),
		},
	}
	callbacks := domain.Callbacks.Handler(domain.Validator).Routes()

	spec, err := buildSpec(cfg, authenticated, callbacks)
	if err != nil {
		return err
	}

	routes.Register(
		mux,
		authenticated,
		callbacks,
		routes.Group{
			Routes: []routes.Route{
				{Method: "GET", Pattern: specPath, Handler: openapi.ServeSpec(spec)},
			},
		},
	)
	return nil
}
