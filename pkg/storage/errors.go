package storage

import (
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrNotFound is returned by Get and Delete when no blob is stored at the key.
	ErrNotFound = errors.New("blob not found")
	// ErrEmptyKey is returned for an empty blob key.
	ErrEmptyKey = errors.New("storage key must not be empty")
	// ErrInvalidKey is returned for keys that are absolute or could escape
	// their prefix, such as "/x", "a/../b" or "a\b".
	ErrInvalidKey = errors.New("storage key contains invalid path segment")
)

// validateKey accepts relative slash-separated keys like
// "uploads/<user>/<id>/report.pdf".
func validateKey(key string) error {
	switch {
	case key == "":
		return ErrEmptyKey
	case strings.HasPrefix(key, "/"),
		strings.Contains(key, `\`),
		strings.Contains(key, ".."):
		return ErrInvalidKey
	}
	return nil
}

// MapHTTPStatus maps key and lookup failures to 404 or 400. Provider
// failures are 500.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyKey), errors.Is(err, ErrInvalidKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
