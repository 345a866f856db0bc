// Package workflows exposes workflow submission and tracking to callers.
// It validates requests, creates records, and hands runs to the orchestrator.
package workflows

import (
	"time"

	"github.com/JaimeStill/lectern/internal/executions"
	"github.com/JaimeStill/lectern/internal/records"
)

// StartCommand carries a workflow submission.
type StartCommand struct {
	UserID     string
	InputRef   string
	Parameters records.Parameters
}

// UploadCommand carries a document upload that starts a workflow.
type UploadCommand struct {
	UserID      string
	Filename    string
	ContentType string
	Data        []byte
	Parameters  records.Parameters
}

// ExecutionView is the live execution state merged into a workflow view.
type ExecutionView struct {
	ID        string            `json:"executionId"`
	Status    executions.Status `json:"status"`
	StartedAt time.Time         `json:"startedAt"`
	Deadline  time.Time         `json:"deadline"`
	StoppedAt *time.Time        `json:"stoppedAt,omitempty"`
}

// View is a workflow record with the state of its latest execution.
type View struct {
	records.Record
	Execution *ExecutionView `json:"execution,omitempty"`
}

// StartRequest is the JSON body of a workflow submission.
type StartRequest struct {
	InputRef       string `json:"inputRef"`
	Translate      bool   `json:"translate"`
	Speech         bool   `json:"speech"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
}

// Parameters returns the workflow parameters of the request.
func (r StartRequest) Parameters() records.Parameters {
	return records.Parameters{
		Translate:      r.Translate,
		Speech:         r.Speech,
		TargetLanguage: r.TargetLanguage,
	}
}
