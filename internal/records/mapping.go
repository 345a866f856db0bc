package records

import (
	"time"

	"github.com/JaimeStill/lectern/pkg/query"
	"github.com/JaimeStill/lectern/pkg/repository"
)

var projection = query.
	NewProjectionMap("", "workflows", "w").
	Project("user_id", "UserID").
	Project("workflow_id", "WorkflowID").
	Project("status", "Status").
	Project("status_category", "Category").
	Project("translate", "Translate").
	Project("speech", "Speech").
	Project("target_language", "TargetLanguage").
	Project("error_kind", "ErrorKind").
	Project("error_cause", "ErrorCause").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var historyProjection = query.
	NewProjectionMap("", "workflow_status_history", "h").
	Project("workflow_id", "WorkflowID").
	Project("seq", "Seq").
	Project("status", "Status").
	Project("error_kind", "ErrorKind").
	Project("error_cause", "ErrorCause").
	Project("recorded_at", "RecordedAt").
	Project("user_id", "UserID")

var artifactProjection = query.
	NewProjectionMap("", "workflow_artifacts", "a").
	Project("workflow_id", "WorkflowID").
	Project("name", "Name").
	Project("path", "Path").
	Project("user_id", "UserID")

// Orderings. Each tag is embedded in cursors so a cursor cannot be replayed
// against a different ordering.
const (
	orderCreated  = "createdAt"
	orderUpdated  = "updatedAt"
	orderFiltered = "status"
)

var orderings = map[string][]query.SortField{
	orderCreated: {
		{Field: "CreatedAt", Descending: true},
		{Field: "WorkflowID", Descending: true},
	},
	orderUpdated: {
		{Field: "UpdatedAt", Descending: true},
		{Field: "WorkflowID", Descending: true},
	},
	orderFiltered: {
		{Field: "Status"},
		{Field: "UpdatedAt", Descending: true},
		{Field: "WorkflowID", Descending: true},
	},
}

// cursorKey is the last-seen composite key of a page.
type cursorKey struct {
	Ordering   string `json:"o"`
	Time       int64  `json:"t"`
	Status     Status `json:"s,omitempty"`
	WorkflowID string `json:"w"`
}

func (k cursorKey) values() []any {
	if k.Ordering == orderFiltered {
		return []any{string(k.Status), k.Time, k.WorkflowID}
	}
	return []any{k.Time, k.WorkflowID}
}

func keyOf(ordering string) func(Record) cursorKey {
	return func(r Record) cursorKey {
		key := cursorKey{Ordering: ordering, WorkflowID: r.WorkflowID}
		switch ordering {
		case orderCreated:
			key.Time = toMicros(r.CreatedAt)
		case orderUpdated:
			key.Time = toMicros(r.UpdatedAt)
		default:
			key.Time = toMicros(r.UpdatedAt)
			key.Status = r.Status
		}
		return key
	}
}

func toMicros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func errorInfo(kind, cause string) *ErrorInfo {
	if kind == "" {
		return nil
	}
	return &ErrorInfo{Error: kind, Cause: cause}
}

func scanRecord(s repository.Scanner) (Record, error) {
	var (
		r                Record
		status, category string
		kind, cause      string
		created, updated int64
	)
	err := s.Scan(
		&r.UserID,
		&r.WorkflowID,
		&status,
		&category,
		&r.Parameters.Translate,
		&r.Parameters.Speech,
		&r.Parameters.TargetLanguage,
		&kind,
		&cause,
		&created,
		&updated,
	)
	if err != nil {
		return r, err
	}

	r.Status = Status(status)
	r.Error = errorInfo(kind, cause)
	r.CreatedAt = fromMicros(created)
	r.UpdatedAt = fromMicros(updated)
	r.StatusHistory = []StatusEntry{}
	r.ArtifactPaths = map[string]string{}
	return r, nil
}

type historyRow struct {
	workflowID string
	entry      StatusEntry
}

func scanHistory(s repository.Scanner) (historyRow, error) {
	var (
		row         historyRow
		seq         int
		status      string
		kind, cause string
		recorded    int64
		userID      string
	)
	if err := s.Scan(&row.workflowID, &seq, &status, &kind, &cause, &recorded, &userID); err != nil {
		return row, err
	}
	row.entry = StatusEntry{
		Status:    Status(status),
		Timestamp: fromMicros(recorded),
		Error:     errorInfo(kind, cause),
	}
	return row, nil
}

type artifactRow struct {
	workflowID string
	name       string
	path       string
}

func scanArtifact(s repository.Scanner) (artifactRow, error) {
	var (
		row    artifactRow
		userID string
	)
	err := s.Scan(&row.workflowID, &row.name, &row.path, &userID)
	return row, err
}

func scanInt(s repository.Scanner) (int, error) {
	var n int
	err := s.Scan(&n)
	return n, err
}

func scanStatus(s repository.Scanner) (Status, error) {
	var status string
	err := s.Scan(&status)
	return Status(status), err
}
