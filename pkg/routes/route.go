package routes

import "net/http"

// Route binds one method and path pattern to a handler. Pattern is relative
// to the enclosing group prefixes and is empty for the group root.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// Key returns the ServeMux pattern of the route mounted below prefix,
// for example "GET /workflows/{id}".
func (r Route) Key(prefix string) string {
	return r.Method + " " + prefix + r.Pattern
}
