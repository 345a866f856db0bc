package workflows

import (
	"context"

	"github.com/JaimeStill/lectern/internal/records"
	"github.com/JaimeStill/lectern/pkg/pagination"
)

// System defines the caller-facing workflow operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	// Start validates cmd, records the workflow in STARTING, and launches its run.
	Start(ctx context.Context, cmd StartCommand) (string, error)
	// Upload stores the document and starts a workflow over it.
	Upload(ctx context.Context, cmd UploadCommand) (string, error)
	// Get returns the workflow merged with its live execution status.
	Get(ctx context.Context, userID, workflowID string) (*View, error)
	// List returns one page of the user's workflows.
	List(ctx context.Context, userID string, q records.ListQuery) (*pagination.Page[records.Record], error)
}
