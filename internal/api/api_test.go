package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/lectern/internal/api"
	"github.com/JaimeStill/lectern/internal/config"
	"github.com/JaimeStill/lectern/internal/infrastructure"
	"github.com/JaimeStill/lectern/internal/records"
	"github.com/JaimeStill/lectern/internal/schema"
	"github.com/JaimeStill/lectern/pkg/module"
)

func setup(t *testing.T) (*config.Config, *infrastructure.Infrastructure) {
	t.Helper()
	dir := t.TempDir()
	body := `
[database]
driver = "sqlite"
path = "` + filepath.ToSlash(filepath.Join(dir, "lectern.db")) + `"

[storage]
provider = "local"
root = "` + filepath.ToSlash(filepath.Join(dir, "blobs")) + `"

[api.pagination]
default_limit = 10
max_limit = 50

[services.extraction]
base_url = "http://127.0.0.1:1"

[services.formatter]
base_url = "http://127.0.0.1:1"

[services.translator]
base_url = "http://127.0.0.1:1"

[services.speech]
base_url = "http://127.0.0.1:1"
`
	path := filepath.Join(dir, config.BaseConfigFile)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(config.EnvLecternEnv, "test")

	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	infra, err := infrastructure.New(cfg)
	if err != nil {
		t.Fatalf("infrastructure: %v", err)
	}
	if err := schema.Apply(context.Background(), infra.Database.Connection()); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() {
		infra.Lifecycle.Shutdown(5 * time.Second)
		infra.Database.Connection().Close()
	})
	return cfg, infra
}

func TestNewRuntime(t *testing.T) {
	cfg, infra := setup(t)
	runtime := api.NewRuntime(cfg, infra)

	if runtime.Pagination.DefaultLimit != 10 || runtime.Pagination.MaxLimit != 50 {
		t.Errorf("pagination = %+v", runtime.Pagination)
	}
	if runtime.Workflow.MaxConcurrent != 16 {
		t.Errorf("max concurrent = %d", runtime.Workflow.MaxConcurrent)
	}
	if runtime.Services.Speech.BaseURL != "http://127.0.0.1:1" {
		t.Errorf("speech = %s", runtime.Services.Speech.BaseURL)
	}
	if runtime.Logger == nil || runtime.Database == nil || runtime.Storage == nil || runtime.Events == nil {
		t.Error("runtime is missing infrastructure")
	}
}

func TestNewDomain(t *testing.T) {
	cfg, infra := setup(t)

	domain, err := api.NewDomain(api.NewRuntime(cfg, infra))
	if err != nil {
		t.Fatalf("NewDomain() error = %v", err)
	}
	if domain.Workflows == nil || domain.Orchestrator == nil || domain.Callbacks == nil || domain.Reconciler == nil {
		t.Errorf("domain = %+v", domain)
	}
}

func TestModuleRoutes(t *testing.T) {
	cfg, infra := setup(t)

	m, err := api.NewModule(context.Background(), cfg, infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}
	if m.Prefix() != "/api" {
		t.Errorf("prefix: got %s, want /api", m.Prefix())
	}

	router := module.NewRouter()
	router.Mount(m)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   string
		status int
	}{
		{"list requires identity", "GET", "/api/workflows", "", "", http.StatusUnauthorized},
		{"list", "GET", "/api/workflows", "u1", "", http.StatusOK},
		{"list bad cursor", "GET", "/api/workflows?cursor=%21%21", "u1", "", http.StatusBadRequest},
		{"get unknown", "GET", "/api/workflows/wf-none", "u1", "", http.StatusNotFound},
		{"start missing input", "POST", "/api/workflows", "u1", `{"inputRef":"uploads/u1/none.pdf"}`, http.StatusBadRequest},
		{"artifact of unknown workflow", "GET", "/api/workflows/wf-none/artifacts/formattedText", "u1", "", http.StatusNotFound},
		{"export", "GET", "/api/workflows/export", "u1", "", http.StatusOK},
		{"abort unknown", "POST", "/api/executions/none/abort", "u1", "", http.StatusNotFound},
		{"callback needs no identity", "POST", "/api/callbacks/extraction", "", `{}`, http.StatusBadRequest},
		{"openapi needs no identity", "GET", "/api/openapi.json", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.user != "" {
				req.Header.Set(cfg.API.Auth.UserHeader, tt.user)
			}
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestModuleListShape(t *testing.T) {
	cfg, infra := setup(t)
	m, err := api.NewModule(context.Background(), cfg, infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	req := httptest.NewRequest("GET", "/api/workflows", nil)
	req.Header.Set(cfg.API.Auth.UserHeader, "u1")
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, req)

	var page map[string]json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(page["items"]) != "[]" {
		t.Errorf("items = %s, want []", page["items"])
	}
}

func TestOpenAPISpec(t *testing.T) {
	cfg, infra := setup(t)
	m, err := api.NewModule(context.Background(), cfg, infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/api/openapi.json", nil))

	var spec struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]map[string]struct {
			Summary string `json:"summary"`
		} `json:"paths"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&spec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if spec.Info.Title != "Lectern API" {
		t.Errorf("title = %s", spec.Info.Title)
	}

	for _, want := range []struct{ path, method string }{
		{"/workflows", "get"},
		{"/workflows", "post"},
		{"/workflows/upload", "post"},
		{"/workflows/{id}", "get"},
		{"/workflows/{id}/artifacts/{name}", "get"},
		{"/workflows/export", "get"},
		{"/executions/{id}/abort", "post"},
		{"/callbacks/extraction", "post"},
	} {
		op, ok := spec.Paths[want.path][want.method]
		if !ok {
			t.Errorf("missing %s %s", want.method, want.path)
			continue
		}
		if strings.HasPrefix(op.Summary, strings.ToUpper(want.method)+" ") {
			t.Errorf("%s %s has no documented operation", want.method, want.path)
		}
	}
}

type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (w brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestArtifactDownload(t *testing.T) {
	cfg, infra := setup(t)
	ctx := context.Background()

	var logs bytes.Buffer
	infra.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	key := "uploads/u1/doc-1/report.txt"
	if _, err := infra.Storage.Put(ctx, key, strings.NewReader("quarterly numbers"), "text/plain"); err != nil {
		t.Fatalf("put: %v", err)
	}
	store := records.New(infra.Database.Connection(), infra.Database.Dialect(), infra.Logger)
	if _, err := store.Create(ctx, records.CreateCommand{UserID: "u1", WorkflowID: "wf-1", OriginalFile: key}); err != nil {
		t.Fatalf("create: %v", err)
	}

	m, err := api.NewModule(ctx, cfg, infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	request := func(user string) *http.Request {
		req := httptest.NewRequest("GET", "/api/workflows/wf-1/artifacts/originalFile", nil)
		req.Header.Set(cfg.API.Auth.UserHeader, user)
		return req
	}

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, request("u1"))
	if rec.Code != http.StatusOK || rec.Body.String() != "quarterly numbers" {
		t.Errorf("download = %d %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="report.txt"` {
		t.Errorf("content disposition = %q", got)
	}

	other := httptest.NewRecorder()
	m.ServeHTTP(other, request("u2"))
	if other.Code != http.StatusNotFound {
		t.Errorf("other user download = %d, want 404", other.Code)
	}

	m.ServeHTTP(brokenWriter{httptest.NewRecorder()}, request("u1"))
	if !strings.Contains(logs.String(), "artifact stream interrupted") {
		t.Errorf("interrupted stream not logged:\n%s", logs.String())
	}
}
