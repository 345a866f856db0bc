package records

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/JaimeStill/lectern/internal/faults"
)

// Domain errors for record operations.
var (
	ErrNotFound  = errors.New("workflow not found")
	ErrDuplicate = errors.New("workflow already exists")
)

// StateError reports an append rejected because the record is terminal.
type StateError struct {
	Current   Status
	Attempted Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot append %s to workflow in terminal status %s", e.Attempted, e.Current)
}

func (e *StateError) Unwrap() error {
	return faults.ErrWorkflowState
}

// MapHTTPStatus maps record errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	return faults.MapHTTPStatus(err)
}
