// Package module mounts self-contained HTTP surfaces under path prefixes.
// A Module owns a router and its middleware; the Router picks the module by
// the first path segment and falls back to plain probes such as /healthz.
package module

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/JaimeStill/lectern/pkg/middleware"
)

// Module serves an inner router below a single-segment prefix such as "/api".
// The inner router sees request paths with the prefix removed.
type Module struct {
	prefix string
	router http.Handler
	stack  []func(http.Handler) http.Handler

	once    sync.Once
	handler http.Handler
}

// New creates a Module. It panics when prefix is not a single path segment
// with a leading slash, since that is a wiring mistake.
func New(prefix string, router http.Handler) *Module {
	if err := validatePrefix(prefix); err != nil {
		panic(err)
	}
	return &Module{prefix: prefix, router: router}
}

// Prefix returns the mount prefix.
func (m *Module) Prefix() string {
	return m.prefix
}

// Use appends middleware. The first registered runs outermost.
// Middleware added after the module has served a request is ignored.
func (m *Module) Use(mws ...func(http.Handler) http.Handler) {
	m.stack = append(m.stack, mws...)
}

// Handler returns the inner router wrapped in the module middleware.
func (m *Module) Handler() http.Handler {
	m.once.Do(func() {
		m.handler = middleware.Chain(m.router, m.stack...)
	})
	return m.handler
}

// ServeHTTP strips the prefix and dispatches to Handler.
func (m *Module) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.Handler().ServeHTTP(w, m.strip(r))
}

func (m *Module) strip(r *http.Request) *http.Request {
	rest := strings.TrimPrefix(r.URL.Path, m.prefix)
	if rest == "" {
		rest = "/"
	}

	inner := r.Clone(r.Context())
	inner.URL.Path = rest
	inner.URL.RawPath = ""
	return inner
}

func validatePrefix(prefix string) error {
	switch {
	case prefix == "":
		return fmt.Errorf("module prefix cannot be empty")
	case prefix[0] != '/':
		return fmt.Errorf("module prefix must start with /: %s", prefix)
	case len(prefix) == 1 || strings.Contains(prefix[1:], "/"):
		return fmt.Errorf("module prefix must be a single path segment: %s", prefix)
	}
	return nil
}
