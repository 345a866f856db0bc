package callbacks

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/lectern/internal/faults"
)

var (
	// ErrDuplicateToken indicates a token already exists for the external job id.
	ErrDuplicateToken = errors.New("job token already exists")
	// ErrNotFound indicates no token exists for the external job id.
	ErrNotFound = errors.New("job token not found")
	// ErrNoResumer indicates Resume was called before a resumer was bound.
	ErrNoResumer = errors.New("no resumer bound to bridge")
)

// MapHTTPStatus maps bridge errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrDuplicateToken) {
		return http.StatusConflict
	}
	return faults.MapHTTPStatus(err)
}
