// Package callbacks correlates external asynchronous jobs with suspended
// orchestration steps. A job token is written when a job is submitted and
// consumed exactly once when the job's completion signal arrives.
package callbacks

import (
	"time"

	"github.com/JaimeStill/lectern/internal/events"
)

// Backref identifies the workflow a suspended job belongs to.
type Backref struct {
	UserID     string `json:"userId"`
	WorkflowID string `json:"workflowId"`
	InputRef   string `json:"inputRef"`
}

// Token is a persisted suspension awaiting an external job.
type Token struct {
	ExternalJobID string    `json:"externalJobId"`
	ResumeToken   string    `json:"resumeToken"`
	Backref       Backref   `json:"backref"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Outcome is the reported result of an external job.
type Outcome struct {
	Succeeded bool
	OutputRef string
	Cause     string
}

// OutcomeFromSignal converts an artifact-arrival envelope into an Outcome.
func OutcomeFromSignal(s events.ArtifactSignal) Outcome {
	if s.Status == events.ArtifactSucceeded {
		return Outcome{Succeeded: true, OutputRef: s.OutputRef}
	}
	cause := s.Error
	if cause == "" {
		cause = "extraction job failed"
	}
	return Outcome{Cause: cause}
}
