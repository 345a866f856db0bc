// Package records implements the durable workflow record store.
// Each record is keyed by (userId, workflowId) and carries an append-only
// status history and a map of artifact paths.
package records

import "time"

// Artifact path keys.
const (
	ArtifactOriginalFile   = "originalFile"
	ArtifactExtractedText  = "extractedText"
	ArtifactFormattedText  = "formattedText"
	ArtifactTranslatedText = "translatedText"
	ArtifactAudioFile      = "audioFile"
)

// Parameters are the caller-selected options of a workflow.
type Parameters struct {
	Translate      bool   `json:"translate"`
	Speech         bool   `json:"speech"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
}

// ErrorInfo describes why a workflow failed.
// Error is the taxonomy kind and Cause the captured message.
type ErrorInfo struct {
	Error string `json:"error"`
	Cause string `json:"cause"`
}

// StatusEntry is one element of a record's status history.
type StatusEntry struct {
	Status    Status     `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Error     *ErrorInfo `json:"error,omitempty"`
}

// Record is the durable state of one workflow.
type Record struct {
	UserID        string            `json:"userId"`
	WorkflowID    string            `json:"workflowId"`
	Status        Status            `json:"status"`
	StatusHistory []StatusEntry     `json:"statusHistory"`
	Parameters    Parameters        `json:"parameters"`
	ArtifactPaths map[string]string `json:"artifactPaths"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
	Error         *ErrorInfo        `json:"error,omitempty"`
}

// CreateCommand carries the data needed to register a new workflow in STARTING.
type CreateCommand struct {
	UserID       string
	WorkflowID   string
	Parameters   Parameters
	OriginalFile string
}

// Patch is applied together with a status append. Artifacts are upserted
// per key; Error is recorded on both the history entry and the record.
type Patch struct {
	Artifacts map[string]string
	Error     *ErrorInfo
}

// SortKey selects a time ordering for List.
type SortKey string

const (
	SortCreatedAt SortKey = "createdAt"
	SortUpdatedAt SortKey = "updatedAt"
)

// ListQuery selects a page of a user's workflows. SortBy and the filters
// (Status, Category) are mutually exclusive; Status and Category are too.
// A Limit below one returns every remaining record.
type ListQuery struct {
	Limit    int
	Cursor   string
	SortBy   SortKey
	Status   Status
	Category Category
}

func (q ListQuery) filtered() bool {
	return q.Status != "" || q.Category != ""
}
