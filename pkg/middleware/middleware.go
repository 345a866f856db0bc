// Package middleware provides the HTTP middleware shared by Lectern modules:
// request logging, CORS, and caller identity.
package middleware

import "net/http"

// Chain wraps h with mws so the first middleware sees the request first.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
