package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/JaimeStill/lectern/internal/records"
	"github.com/JaimeStill/lectern/pkg/handlers"
	"github.com/JaimeStill/lectern/pkg/middleware"
	"github.com/JaimeStill/lectern/pkg/routes"
	"github.com/JaimeStill/lectern/pkg/storage"
)

// artifactHandler streams workflow artifacts from blob storage to their owner.
type artifactHandler struct {
	records records.Store
	store   storage.System
	logger  *slog.Logger
}

func newArtifactHandler(
	store records.Store,
	blobs storage.System,
	logger *slog.Logger,
) *artifactHandler {
	return &artifactHandler{
		records: store,
		store:   blobs,
		logger:  logger.With("handler", "artifacts"),
	}
}

func (h *artifactHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/{id}/artifacts",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{name}", Handler: h.download},
		},
	}
}

func (h *artifactHandler) download(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserFrom(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, middleware.ErrUnauthenticated)
		return
	}

	rec, err := h.records.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, records.MapHTTPStatus(err), err)
		return
	}

	key, ok := rec.ArtifactPaths[r.PathValue("name")]
	if !ok {
		handlers.RespondError(
			w, h.logger,
			http.StatusNotFound,
			fmt.Errorf("artifact %q: %w", r.PathValue("name"), storage.ErrNotFound),
		)
		return
	}

	body, err := h.store.Get(r.Context(), key)
	if err != nil {
		handlers.RespondError(
			w, h.logger,
			storage.MapHTTPStatus(err), err,
		)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentTypeOf(key))
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", path.Base(key)),
	)
	w.WriteHeader(http.StatusOK)
	if n, err := io.Copy(w, body); err != nil {
		h.logger.Warn("artifact stream interrupted",
			"key", key,
			"bytes_written", n,
			"error", err,
		)
	}
}

func contentTypeOf(key string) string {
	switch path.Ext(key) {
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".pdf":
		return "application/pdf"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
