package executions

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/lectern/pkg/handlers"
	"github.com/JaimeStill/lectern/pkg/middleware"
	"github.com/JaimeStill/lectern/pkg/routes"
)

// Handler provides HTTP endpoints for execution control.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates an execution Handler.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "executions"),
	}
}

// Routes returns the route group definition for execution endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/executions",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/{id}/abort", Handler: h.Abort},
		},
	}
}

// Abort stops one of the caller's running executions.
// Executions owned by other users are reported as not found.
func (h *Handler) Abort(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserFrom(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, middleware.ErrUnauthenticated)
		return
	}

	id := r.PathValue("id")
	exec, err := h.sys.Get(r.Context(), id)
	if err == nil && exec.UserID != userID {
		err = ErrNotFound
	}
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	if err := h.sys.Abort(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, map[string]string{
		"executionId": id,
		"status":      string(StatusAborted),
	})
}
