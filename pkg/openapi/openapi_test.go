package openapi_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/lectern/pkg/openapi"
)

func newSpec(t *testing.T) *openapi.Spec {
	t.Helper()
	cfg := &openapi.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return openapi.NewSpec(cfg, "1.0.0")
}

func TestNewSpec(t *testing.T) {
	spec := newSpec(t)

	if spec.OpenAPI != "3.1.0" {
		t.Errorf("openapi version: got %s, want 3.1.0", spec.OpenAPI)
	}
	if spec.Info.Title != "Lectern API" || spec.Info.Version != "1.0.0" {
		t.Errorf("info: got %+v", spec.Info)
	}
	if spec.Components.Schemas["Error"] == nil {
		t.Error("error schema missing")
	}
	for _, name := range []string{openapi.BadRequest, openapi.Unauthorized, openapi.NotFound, openapi.Conflict, openapi.BadGateway} {
		if spec.Components.Responses[name] == nil {
			t.Errorf("response %s missing", name)
		}
	}
}

func TestAdd(t *testing.T) {
	spec := newSpec(t)
	get := &openapi.Operation{Summary: "get"}
	post := &openapi.Operation{Summary: "post"}

	tests := []struct {
		name    string
		method  string
		path    string
		op      *openapi.Operation
		wantErr bool
	}{
		{"get", "GET", "/workflows/{id}", get, false},
		{"post same path", "post", "/workflows/{id}", post, false},
		{"duplicate", "GET", "/workflows/{id}", get, true},
		{"wildcard", "GET", "/files/{key...}", get, false},
		{"root", "GET", "", get, false},
		{"unsupported method", "PATCH", "/workflows", get, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := spec.Add(tt.method, tt.path, tt.op)
			if (err != nil) != tt.wantErr {
				t.Errorf("Add() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	item := spec.Paths["/workflows/{id}"]
	if item == nil || item.Get != get || item.Post != post {
		t.Errorf("path item: got %+v", item)
	}
	if spec.Paths["/files/{key}"] == nil {
		t.Error("wildcard path not normalized")
	}
	if spec.Paths["/"] == nil {
		t.Error("empty path not mapped to /")
	}
}

func TestHelpers(t *testing.T) {
	if ref := openapi.SchemaRef("Workflow").Ref; ref != "#/components/schemas/Workflow" {
		t.Errorf("schema ref: got %s", ref)
	}
	if ref := openapi.ResponseRef("NotFound").Ref; ref != "#/components/responses/NotFound" {
		t.Errorf("response ref: got %s", ref)
	}

	rb := openapi.RequestBodyJSON("StartRequest", true)
	if !rb.Required || rb.Content["application/json"].Schema.Ref != "#/components/schemas/StartRequest" {
		t.Errorf("request body: got %+v", rb)
	}

	p := openapi.PathParam("id", "Workflow id")
	if p.In != "path" || !p.Required || p.Schema.Type != "string" {
		t.Errorf("path param: got %+v", p)
	}

	q := openapi.QueryParam("category", "string", "filter", "active", "failed")
	if q.In != "query" || q.Required || len(q.Schema.Enum) != 2 {
		t.Errorf("query param: got %+v", q)
	}

	bin := openapi.ResponseBinary("audio", "audio/mpeg")
	if bin.Content["audio/mpeg"].Schema.Format != "binary" {
		t.Errorf("binary response: got %+v", bin)
	}

	page := openapi.PageSchema("Workflow")
	if page.Properties["items"].Items.Ref != "#/components/schemas/Workflow" {
		t.Errorf("page schema: got %+v", page.Properties["items"])
	}
}

func TestServeSpec(t *testing.T) {
	spec := newSpec(t)
	spec.AddServer("/api")
	if err := spec.Add("GET", "/workflows", &openapi.Operation{
		Summary:   "List",
		Responses: map[int]*openapi.Response{200: {Description: "OK"}},
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	data, err := openapi.MarshalJSON(spec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	rec := httptest.NewRecorder()
	openapi.ServeSpec(data)(rec, httptest.NewRequest("GET", "/openapi.json", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content type: got %s", ct)
	}

	body, _ := io.ReadAll(rec.Body)
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	paths := doc["paths"].(map[string]any)
	get := paths["/workflows"].(map[string]any)["get"].(map[string]any)
	if _, ok := get["responses"].(map[string]any)["200"]; !ok {
		t.Errorf("responses: got %v", get["responses"])
	}
	if servers := doc["servers"].([]any); len(servers) != 1 {
		t.Errorf("servers: got %v", servers)
	}
}

func TestConfig(t *testing.T) {
	t.Setenv("TEST_OPENAPI_TITLE", "Docs")

	cfg := &openapi.Config{Description: "custom"}
	if err := cfg.Finalize(&openapi.ConfigEnv{Title: "TEST_OPENAPI_TITLE"}); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if cfg.Title != "Docs" || cfg.Description != "custom" {
		t.Errorf("config: got %+v", cfg)
	}

	cfg.Merge(&openapi.Config{Title: "Overlay"})
	if cfg.Title != "Overlay" || cfg.Description != "custom" {
		t.Errorf("merged: got %+v", cfg)
	}
}
