// Package reconciler absorbs forced-terminal execution signals, such as
// timeouts and aborts, that bypass normal step completion, and records them
// on the owning workflow.
package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/JaimeStill/lectern/internal/events"
	"github.com/JaimeStill/lectern/internal/executions"
	"github.com/JaimeStill/lectern/internal/faults"
	"github.com/JaimeStill/lectern/internal/records"
)

// Causes recorded for forced-terminal outcomes.
const (
	CauseTimedOut = "workflow execution timed out"
	CauseAborted  = "workflow execution was aborted"
)

type owner struct {
	UserID     string `json:"userId"`
	WorkflowID string `json:"workflowId"`
}

// Reconciler maps terminal execution events onto workflow records.
type Reconciler struct {
	records records.Store
	logger  *slog.Logger
}

// New creates a Reconciler writing to store.
func New(store records.Store, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		records: store,
		logger:  logger.With("system", "reconciler"),
	}
}

// HandlePayload decodes a terminal event envelope and handles it.
// It has the shape of an event bus handler.
func (r *Reconciler) HandlePayload(ctx context.Context, payload []byte) {
	var evt events.TerminalEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		r.logger.Warn("dropping undecodable terminal event", "error", err)
		return
	}
	r.Handle(ctx, evt)
}

// Handle records a forced-terminal outcome. TIMED_OUT executions become
// TIMED_OUT records and ABORTED executions become FAILED records; other
// statuses are ignored. Failures are logged, never returned.
func (r *Reconciler) Handle(ctx context.Context, evt events.TerminalEvent) {
	var (
		status records.Status
		info   records.ErrorInfo
	)

	switch executions.Status(evt.Status) {
	case executions.StatusTimedOut:
		status = records.StatusTimedOut
		info = records.ErrorInfo{Error: faults.KindExecutionTimeout, Cause: CauseTimedOut}
	case executions.StatusAborted:
		status = records.StatusFailed
		info = records.ErrorInfo{Error: faults.KindExecutionAborted, Cause: CauseAborted}
	default:
		r.logger.Debug("ignoring terminal event", "execution_id", evt.ExecutionID, "status", evt.Status)
		return
	}

	var o owner
	if err := json.Unmarshal(evt.Input, &o); err != nil {
		r.logger.Warn("terminal event input unparsable", "execution_id", evt.ExecutionID, "error", err)
		return
	}
	if o.UserID == "" || o.WorkflowID == "" {
		r.logger.Warn("terminal event input missing owner", "execution_id", evt.ExecutionID)
		return
	}

	err := r.records.AppendStatus(ctx, o.UserID, o.WorkflowID, status, records.Patch{Error: &info})
	switch {
	case err == nil:
		r.logger.Info(
			"forced terminal status recorded",
			"execution_id", evt.ExecutionID,
			"workflow_id", o.WorkflowID,
			"status", status,
		)
	case errors.Is(err, faults.ErrWorkflowState):
		r.logger.Info("workflow already terminal", "execution_id", evt.ExecutionID, "workflow_id", o.WorkflowID)
	default:
		r.logger.Error("forced terminal status not recorded", "execution_id", evt.ExecutionID, "workflow_id", o.WorkflowID, "error", err)
	}
}
