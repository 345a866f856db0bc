package executions

import (
	"context"
	"encoding/json"
	"time"
)

// System manages execution state.
type System interface {
	// Start creates a RUNNING execution for the workflow with deadline now+timeout.
	Start(ctx context.Context, userID, workflowID string, input json.RawMessage, timeout time.Duration) (*Execution, error)
	// Get returns the execution or ErrNotFound.
	Get(ctx context.Context, id string) (*Execution, error)
	// Latest returns the most recently started execution of a workflow or ErrNotFound.
	Latest(ctx context.Context, userID, workflowID string) (*Execution, error)
	// Complete moves a RUNNING execution to status. Stopped executions return *NotRunningError.
	Complete(ctx context.Context, id string, status Status) error
	// Abort moves a RUNNING execution to ABORTED and publishes a terminal event.
	// A failed publish stays pending and is retried by Sweep.
	Abort(ctx context.Context, id string) error
	// Sweep times out RUNNING executions past their deadline, publishes the
	// terminal event of every stopped execution still pending delivery, and
	// reaps expired job tokens.
	Sweep(ctx context.Context) (int, error)
	// Watchdog runs Sweep every interval until ctx ends.
	Watchdog(ctx context.Context, interval time.Duration)
}

// Reaper removes expired suspended-job tokens.
type Reaper interface {
	Reap(ctx context.Context, now time.Time) (int, error)
}
