// Package faults defines the error taxonomy shared by workflow components.
// The Kind of an error is what gets persisted on a FAILED workflow record.
package faults

import (
	"errors"
	"fmt"
	"net/http"
)

// Taxonomy sentinels. Concrete errors wrap one of these so callers can test with errors.Is.
var (
	ErrValidation      = errors.New("validation error")
	ErrExternalService = errors.New("external service error")
	ErrProcessing      = errors.New("processing error")
	ErrStorage         = errors.New("storage error")
	ErrWorkflowState   = errors.New("workflow state error")
)

// Persisted error kinds.
const (
	KindValidation       = "ValidationError"
	KindExternalService  = "ExternalServiceError"
	KindProcessing       = "ProcessingError"
	KindStorage          = "StorageError"
	KindWorkflowState    = "WorkflowStateError"
	KindExecutionAborted = "ExecutionAborted"
	KindExecutionTimeout = "ExecutionTimedOut"
	KindUnknown          = "UnknownError"
)

// ExternalServiceError records a failed call to a named collaborator.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() []error {
	return []error{ErrExternalService, e.Err}
}

// External wraps err as a failure of service.
func External(service string, err error) error {
	return &ExternalServiceError{Service: service, Err: err}
}

// Validation wraps a formatted message with ErrValidation.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Processing wraps a formatted message with ErrProcessing.
func Processing(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProcessing, fmt.Sprintf(format, args...))
}

// Storage wraps err with ErrStorage.
func Storage(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// Kind returns the persisted error kind for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrExternalService):
		return KindExternalService
	case errors.Is(err, ErrProcessing):
		return KindProcessing
	case errors.Is(err, ErrStorage):
		return KindStorage
	case errors.Is(err, ErrWorkflowState):
		return KindWorkflowState
	default:
		return KindUnknown
	}
}

// MapHTTPStatus maps taxonomy errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrWorkflowState):
		return http.StatusConflict
	case errors.Is(err, ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
