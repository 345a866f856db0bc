package export_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/JaimeStill/lectern/internal/export"
	"github.com/JaimeStill/lectern/internal/records"
	"github.com/JaimeStill/lectern/internal/schema/schematest"
	"github.com/JaimeStill/lectern/pkg/middleware"
)

func newStore(t *testing.T) records.Store {
	t.Helper()
	db := schematest.Open(t)
	return records.New(db.Connection(), db.Dialect(), schematest.Logger())
}

func create(t *testing.T, store records.Store, userID, workflowID string) {
	t.Helper()
	if _, err := store.Create(context.Background(), records.CreateCommand{
		UserID:       userID,
		WorkflowID:   workflowID,
		Parameters:   records.Parameters{Translate: true, TargetLanguage: "fr"},
		OriginalFile: "uploads/" + userID + "/" + workflowID + "/input.pdf",
	}); err != nil {
		t.Fatalf("create %s: %v", workflowID, err)
	}
}

func readRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(export.SheetName)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	return rows
}

func TestWorkflowsXLSX(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	create(t, store, "u1", "wf-ok")
	create(t, store, "u1", "wf-bad")
	create(t, store, "u2", "wf-other")

	if err := store.AppendStatus(ctx, "u1", "wf-ok", records.StatusSucceeded, records.Patch{
		Artifacts: map[string]string{
			"translatedText": "artifacts/u1/wf-ok/translated.txt",
			"formattedText":  "artifacts/u1/wf-ok/formatted.txt",
		},
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	cause := strings.Repeat("x", 200)
	if err := store.AppendStatus(ctx, "u1", "wf-bad", records.StatusFailed, records.Patch{
		Error: &records.ErrorInfo{Error: "ExternalServiceError", Cause: cause},
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := export.New(store, schematest.Logger()).WorkflowsXLSX(ctx, "u1", records.ListQuery{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	rows := readRows(t, data)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header plus 2", len(rows))
	}
	if strings.Join(rows[0], "|") != strings.Join(export.Headers, "|") {
		t.Errorf("header = %v", rows[0])
	}

	byID := map[string][]string{}
	for _, row := range rows[1:] {
		byID[row[0]] = row
	}

	ok := byID["wf-ok"]
	if ok == nil || ok[1] != "SUCCEEDED" || ok[2] != "completed" {
		t.Fatalf("wf-ok row = %v", ok)
	}
	if ok[7] != "fr" || ok[8] != "formattedText, translatedText" {
		t.Errorf("wf-ok language/artifacts = %q / %q", ok[7], ok[8])
	}

	bad := byID["wf-bad"]
	if bad == nil || bad[1] != "FAILED" || bad[9] != "ExternalServiceError" {
		t.Fatalf("wf-bad row = %v", bad)
	}
	if bad[8] != "" {
		t.Errorf("wf-bad artifacts = %q, want none beyond the original file", bad[8])
	}
	if len(bad[10]) >= len(cause) {
		t.Errorf("cause not truncated: %d chars", len(bad[10]))
	}

	if _, found := byID["wf-other"]; found {
		t.Error("export leaked another user's workflow")
	}
}

func TestWorkflowsXLSXPages(t *testing.T) {
	store := newStore(t)
	for i := range 105 {
		create(t, store, "u1", fmt.Sprintf("wf-%03d", i))
	}

	data, err := export.New(store, schematest.Logger()).WorkflowsXLSX(context.Background(), "u1", records.ListQuery{Limit: 5})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if rows := readRows(t, data); len(rows) != 106 {
		t.Errorf("rows = %d, want 106", len(rows))
	}
}

func TestWorkflowsXLSXFilter(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	create(t, store, "u1", "wf-1")
	create(t, store, "u1", "wf-2")
	if err := store.AppendStatus(ctx, "u1", "wf-2", records.StatusFailed, records.Patch{}); err != nil {
		t.Fatalf("append: %v", err)
	}

	svc := export.New(store, schematest.Logger())
	data, err := svc.WorkflowsXLSX(ctx, "u1", records.ListQuery{Category: records.CategoryFailed})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	rows := readRows(t, data)
	if len(rows) != 2 || rows[1][0] != "wf-2" {
		t.Errorf("rows = %v, want only wf-2", rows)
	}

	if _, err := svc.WorkflowsXLSX(ctx, "u1", records.ListQuery{Status: "BOGUS"}); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestHandler(t *testing.T) {
	store := newStore(t)
	create(t, store, "u1", "wf-1")
	h := export.NewHandler(export.New(store, schematest.Logger()), schematest.Logger())

	tests := []struct {
		name   string
		user   string
		query  string
		status int
	}{
		{"unauthenticated", "", "", http.StatusUnauthorized},
		{"invalid status", "u1", "?status=bogus", http.StatusBadRequest},
		{"workbook", "u1", "?category=active", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/workflows/export"+tt.query, nil)
			if tt.user != "" {
				req = req.WithContext(middleware.WithUser(req.Context(), tt.user))
			}
			rec := httptest.NewRecorder()

			h.Workflows(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			if !strings.Contains(rec.Header().Get("Content-Disposition"), ".xlsx") {
				t.Errorf("disposition = %q", rec.Header().Get("Content-Disposition"))
			}
			if rows := readRows(t, rec.Body.Bytes()); len(rows) != 2 || rows[1][0] != "wf-1" {
				t.Errorf("rows = %v", rows)
			}
		})
	}
}
