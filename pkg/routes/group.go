package routes

import "net/http"

// Group organizes routes under a common prefix with shared middleware.
// Middleware wraps every route in the group and its children, outermost first.
type Group struct {
	Prefix     string
	Middleware []func(http.Handler) http.Handler
	Routes     []Route
	Children   []Group
}

// Register adds all routes from the given groups to the mux.
func Register(mux *http.ServeMux, groups ...Group) {
	for _, group := range groups {
		registerGroup(mux, "", nil, group)
	}
}

func registerGroup(mux *http.ServeMux, parentPrefix string, parentMw []func(http.Handler) http.Handler, group Group) {
	fullPrefix := parentPrefix + group.Prefix
	chain := append(append([]func(http.Handler) http.Handler{}, parentMw...), group.Middleware...)

	for _, route := range group.Routes {
		mux.Handle(route.Key(fullPrefix), wrap(route.Handler, chain))
	}
	for _, child := range group.Children {
		registerGroup(mux, fullPrefix, chain, child)
	}
}

// Walk calls fn for every route in groups with the combined prefix of its
// enclosing groups, parents first.
func Walk(fn func(prefix string, route Route), groups ...Group) {
	var walk func(prefix string, g Group)
	walk = func(prefix string, g Group) {
		full := prefix + g.Prefix
		for _, r := range g.Routes {
			fn(full, r)
		}
		for _, child := range g.Children {
			walk(full, child)
		}
	}
	for _, g := range groups {
		walk("", g)
	}
}

func wrap(h http.Handler, chain []func(http.Handler) http.Handler) http.Handler {
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}
