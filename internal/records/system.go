package records

import (
	"context"

	"github.com/JaimeStill/lectern/pkg/pagination"
)

// Store defines the durable workflow record operations.
type Store interface {
	// Create registers a workflow in STARTING. Returns ErrDuplicate if the key exists.
	Create(ctx context.Context, cmd CreateCommand) (*Record, error)
	// Get returns the record for the key or ErrNotFound.
	Get(ctx context.Context, userID, workflowID string) (*Record, error)
	// AppendStatus appends status to the history, applies patch, and bumps
	// updatedAt atomically. Terminal records reject the append with a *StateError.
	AppendStatus(ctx context.Context, userID, workflowID string, status Status, patch Patch) error
	// List returns one page of the user's workflows.
	List(ctx context.Context, userID string, q ListQuery) (*pagination.Page[Record], error)
}
