package workflows

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/lectern/internal/records"
	"github.com/JaimeStill/lectern/pkg/middleware"
)

// Request errors raised by the HTTP handler.
var (
	ErrFileTooLarge = errors.New("file exceeds maximum upload size")
	ErrInvalidFile  = errors.New("invalid file")
	ErrInvalidBody  = errors.New("invalid request body")
)

// MapHTTPStatus maps workflow errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidFile), errors.Is(err, ErrInvalidBody):
		return http.StatusBadRequest
	case errors.Is(err, middleware.ErrUnauthenticated):
		return http.StatusUnauthorized
	}
	return records.MapHTTPStatus(err)
}
