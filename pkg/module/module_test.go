package module_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/lectern/pkg/module"
)

func TestNewValidPrefix(t *testing.T) {
	for _, prefix := range []string{"/api", "/callbacks", "/v1"} {
		t.Run(prefix, func(t *testing.T) {
			m := module.New(prefix, http.NewServeMux())
			if m.Prefix() != prefix {
				t.Errorf("prefix: got %s, want %s", m.Prefix(), prefix)
			}
		})
	}
}

func TestNewInvalidPrefixPanics(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
	}{
		{"empty", ""},
		{"root", "/"},
		{"no leading slash", "api"},
		{"nested path", "/api/v1"},
		{"trailing slash", "/api/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Error("expected panic for invalid prefix")
				}
			}()
			module.New(tt.prefix, http.NewServeMux())
		})
	}
}

func TestServeStripsPrefix(t *testing.T) {
	var receivedPath, outerPath string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		receivedPath = r.URL.Path
	})
	mux.HandleFunc("GET /workflows/{id}", func(w http.ResponseWriter, r *http.Request) {
		receivedPath = r.URL.Path + "#" + r.PathValue("id")
	})

	m := module.New("/api", mux)

	tests := []struct {
		path string
		want string
	}{
		{"/api/workflows/wf-1", "/workflows/wf-1#wf-1"},
		{"/api", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			outerPath = req.URL.Path
			m.ServeHTTP(httptest.NewRecorder(), req)

			if receivedPath != tt.want {
				t.Errorf("inner path: got %s, want %s", receivedPath, tt.want)
			}
			if req.URL.Path != outerPath {
				t.Errorf("outer request mutated: %s", req.URL.Path)
			}
		})
	}
}

func TestModuleMiddlewareOrder(t *testing.T) {
	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	})

	m := module.New("/api", mux)
	m.Use(tag("cors"))
	m.Use(tag("logger"), tag("auth"))

	m.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api", nil))

	want := []string{"cors", "logger", "auth", "handler"}
	if len(order) != len(want) {
		t.Fatalf("order: got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order: got %v, want %v", order, want)
			break
		}
	}
}

func TestRouterDispatch(t *testing.T) {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /workflows", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("api"))
	})

	callbackMux := http.NewServeMux()
	callbackMux.HandleFunc("POST /extraction", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("callback"))
	})

	router := module.NewRouter()
	router.Mount(module.New("/api", apiMux))
	router.Mount(module.New("/callbacks", callbackMux))
	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		{"api module", "GET", "/api/workflows", http.StatusOK, "api"},
		{"trailing slash", "GET", "/api/workflows/", http.StatusOK, "api"},
		{"callback module", "POST", "/callbacks/extraction", http.StatusOK, "callback"},
		{"native fallback", "GET", "/healthz", http.StatusOK, "ok"},
		{"unknown", "GET", "/missing", http.StatusNotFound, ""},
		{"prefix lookalike", "GET", "/apis/workflows", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status: got %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body: got %s, want %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}
