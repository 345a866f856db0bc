package executions

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/JaimeStill/lectern/internal/faults"
)

// ErrNotFound indicates no execution exists for the given id or workflow.
var ErrNotFound = errors.New("execution not found")

// ErrDuplicate indicates an execution id collision.
var ErrDuplicate = errors.New("execution already exists")

// NotRunningError reports a transition attempted on a stopped execution.
type NotRunningError struct {
	ID     string
	Status Status
}

func (e *NotRunningError) Error() string {
	return fmt.Sprintf("execution %s is %s, not %s", e.ID, e.Status, StatusRunning)
}

func (e *NotRunningError) Unwrap() error {
	return faults.ErrWorkflowState
}

// MapHTTPStatus maps execution errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	return faults.MapHTTPStatus(err)
}
