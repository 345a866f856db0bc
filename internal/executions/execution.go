// Package executions tracks the run each workflow orchestration executes in.
// An execution owns the raw input payload, a hard deadline, and the
// infrastructure-level outcome of the run.
package executions

import (
	"encoding/json"
	"time"
)

// Status is the infrastructure-level state of an execution.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusTimedOut  Status = "TIMED_OUT"
	StatusAborted   Status = "ABORTED"
)

// Execution is one run of a workflow orchestration.
type Execution struct {
	ID         string          `json:"executionId"`
	UserID     string          `json:"userId"`
	WorkflowID string          `json:"workflowId"`
	Input      json.RawMessage `json:"input"`
	Status     Status          `json:"status"`
	StartedAt  time.Time       `json:"startedAt"`
	Deadline   time.Time       `json:"deadline"`
	StoppedAt  *time.Time      `json:"stoppedAt,omitempty"`
}
