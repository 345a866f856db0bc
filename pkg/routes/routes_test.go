package routes_test

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/JaimeStill/lectern/pkg/routes"
)

func TestRegisterHandlers(t *testing.T) {
	mux := http.NewServeMux()

	routes.Register(mux, routes.Group{
		Prefix: "/items",
		Routes: []routes.Route{
			{
				Method:  "GET",
				Pattern: "",
				Handler: func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				},
			},
			{
				Method:  "GET",
				Pattern: "/{id}",
				Handler: func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				},
			},
		},
	})

	tests := []struct {
		name   string
		method string
		path   string
		wantOK bool
	}{
		{"list items", "GET", "/items", true},
		{"get item", "GET", "/items/123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			mux.ServeHTTP(rec, req)

			if tt.wantOK && rec.Code != http.StatusOK {
				t.Errorf("status: got %d, want 200", rec.Code)
			}
		})
	}
}

func TestNestedGroups(t *testing.T) {
	mux := http.NewServeMux()

	routes.Register(mux, routes.Group{
		Prefix: "/api",
		Children: []routes.Group{
			{
				Prefix: "/v1",
				Routes: []routes.Route{
					{
						Method:  "GET",
						Pattern: "/items",
						Handler: func(w http.ResponseWriter, r *http.Request) {
							w.WriteHeader(http.StatusOK)
						},
					},
				},
			},
		},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/items", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("nested route: got %d, want 200", rec.Code)
	}
}

func TestGroupMiddleware(t *testing.T) {
	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	ok := func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusOK)
	}

	mux := http.NewServeMux()
	routes.Register(mux,
		routes.Group{
			Prefix:     "/api",
			Middleware: []func(http.Handler) http.Handler{tag("auth")},
			Routes:     []routes.Route{{Method: "GET", Pattern: "/self", Handler: ok}},
			Children: []routes.Group{{
				Prefix:     "/items",
				Middleware: []func(http.Handler) http.Handler{tag("audit")},
				Routes:     []routes.Route{{Method: "GET", Pattern: "/{id}", Handler: ok}},
			}},
		},
		routes.Group{
			Prefix: "/public",
			Routes: []routes.Route{{Method: "GET", Pattern: "", Handler: ok}},
		},
	)

	tests := []struct {
		path string
		want []string
	}{
		{"/api/self", []string{"auth", "handler"}},
		{"/api/items/7", []string{"auth", "audit", "handler"}},
		{"/public", []string{"handler"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			order = nil
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status: got %d, want 200", rec.Code)
			}
			if !slices.Equal(order, tt.want) {
				t.Errorf("order: got %v, want %v", order, tt.want)
			}
		})
	}
}

func TestWalk(t *testing.T) {
	noop := func(w http.ResponseWriter, r *http.Request) {}

	var got []string
	routes.Walk(func(prefix string, r routes.Route) {
		got = append(got, r.Key(prefix))
	},
		routes.Group{
			Prefix: "/workflows",
			Routes: []routes.Route{
				{Method: "GET", Pattern: "", Handler: noop},
				{Method: "GET", Pattern: "/{id}", Handler: noop},
			},
			Children: []routes.Group{{
				Prefix: "/{id}/artifacts",
				Routes: []routes.Route{{Method: "GET", Pattern: "/{name}", Handler: noop}},
			}},
		},
		routes.Group{
			Prefix: "/callbacks",
			Routes: []routes.Route{{Method: "POST", Pattern: "/extraction", Handler: noop}},
		},
	)

	want := []string{
		"GET /workflows",
		"GET /workflows/{id}",
		"GET /workflows/{id}/artifacts/{name}",
		"POST /callbacks/extraction",
	}
	if !slices.Equal(got, want) {
		t.Errorf("walk: got %v, want %v", got, want)
	}
}

func TestRouteKey(t *testing.T) {
	tests := []struct {
		route  routes.Route
		prefix string
		want   string
	}{
		{routes.Route{Method: "GET", Pattern: ""}, "/workflows", "GET /workflows"},
		{routes.Route{Method: "POST", Pattern: "/{id}/abort"}, "/executions", "POST /executions/{id}/abort"},
		{routes.Route{Method: "GET", Pattern: "/openapi.json"}, "", "GET /openapi.json"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.route.Key(tt.prefix); got != tt.want {
				t.Errorf("Key(%q) = %q, want %q", tt.prefix, got, tt.want)
			}
		})
	}
}
