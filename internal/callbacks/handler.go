package callbacks

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/lectern/internal/events"
	"github.com/JaimeStill/lectern/internal/faults"
	"github.com/JaimeStill/lectern/pkg/handlers"
	"github.com/JaimeStill/lectern/pkg/routes"
)

const maxSignalSize = 64 << 10

// Handler provides the HTTP endpoint external engines call on job completion.
type Handler struct {
	bridge    Bridge
	validator Validator
	logger    *slog.Logger
}

// NewHandler creates a callback Handler.
func NewHandler(bridge Bridge, validator Validator, logger *slog.Logger) *Handler {
	return &Handler{
		bridge:    bridge,
		validator: validator,
		logger:    logger.With("handler", "callbacks"),
	}
}

// Routes returns the route group definition for callback endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/callbacks",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/extraction", Handler: h.Extraction},
		},
	}
}

// Extraction accepts an artifact-arrival signal and resumes the suspended workflow.
// Signals for unknown jobs are accepted so that redelivery is harmless.
func (h *Handler) Extraction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSignalSize))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if err := h.validator.Validate(events.TopicArtifacts, body); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, faults.Validation("%v", err))
		return
	}

	var signal events.ArtifactSignal
	if err := json.Unmarshal(body, &signal); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, faults.Validation("%v", err))
		return
	}

	if err := h.bridge.Resume(r.Context(), signal.JobID, OutcomeFromSignal(signal)); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, map[string]string{"jobId": signal.JobID})
}
