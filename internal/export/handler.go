package export

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/JaimeStill/lectern/internal/records"
	"github.com/JaimeStill/lectern/pkg/handlers"
	"github.com/JaimeStill/lectern/pkg/middleware"
	"github.com/JaimeStill/lectern/pkg/routes"
)

const contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler serves workbook downloads of the caller's workflows.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a Handler over svc.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger.With("handler", "export"),
	}
}

// Routes mounts the export under its parent group.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/export",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.Workflows},
		},
	}
}

// Workflows writes the caller's workflows as an XLSX attachment.
// Query parameters: sort_by, status, category.
func (h *Handler) Workflows(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserFrom(r.Context())
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, middleware.ErrUnauthenticated)
		return
	}

	values := r.URL.Query()
	data, err := h.svc.WorkflowsXLSX(r.Context(), userID, records.ListQuery{
		SortBy:   records.SortKey(values.Get("sort_by")),
		Status:   records.Status(strings.ToUpper(values.Get("status"))),
		Category: records.Category(strings.ToLower(values.Get("category"))),
	})
	if err != nil {
		handlers.RespondError(w, h.logger, records.MapHTTPStatus(err), err)
		return
	}

	filename := fmt.Sprintf("workflows-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", contentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
