// Package export renders a user's workflow records as an XLSX workbook.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JaimeStill/lectern/internal/records"
	"github.com/JaimeStill/lectern/pkg/formatting"
)

// SheetName is the worksheet holding the exported rows.
const SheetName = "Workflows"

const (
	pageSize   = 100
	causeWidth = 140
)

// Headers are the workbook column titles in order.
var Headers = []string{
	"Workflow ID",
	"Status",
	"Category",
	"Created",
	"Updated",
	"Translate",
	"Speech",
	"Target Language",
	"Produced Artifacts",
	"Error",
	"Cause",
}

// Service produces workbook bytes from the record store.
type Service struct {
	records records.Store
	logger  *slog.Logger
}

// New creates an export Service.
func New(store records.Store, logger *slog.Logger) *Service {
	return &Service{
		records: store,
		logger:  logger.With("system", "export"),
	}
}

// WorkflowsXLSX returns every workflow of userID matching q as an XLSX workbook.
// q.Limit and q.Cursor are managed internally.
func (s *Service) WorkflowsXLSX(ctx context.Context, userID string, q records.ListQuery) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	row := 2
	q.Limit = pageSize
	q.Cursor = ""
	for {
		page, err := s.records.List(ctx, userID, q)
		if err != nil {
			return nil, fmt.Errorf("list workflows: %w", err)
		}

		for _, rec := range page.Items {
			if err := writeRow(f, row, rec); err != nil {
				return nil, err
			}
			row++
		}

		if page.NextCursor == "" {
			break
		}
		q.Cursor = page.NextCursor
	}

	_ = f.SetColWidth(SheetName, "A", "A", 38) // id
	_ = f.SetColWidth(SheetName, "B", "C", 22)
	_ = f.SetColWidth(SheetName, "D", "E", 22) // timestamps
	_ = f.SetColWidth(SheetName, "I", "I", 48)
	_ = f.SetColWidth(SheetName, "K", "K", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("workflows exported",
		"user_id", userID,
		"rows", row-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, row int, rec records.Record) error {
	var kind, cause string
	if rec.Error != nil {
		kind = rec.Error.Error
		cause, _ = formatting.Truncate(rec.Error.Cause, causeWidth)
	}

	values := []any{
		rec.WorkflowID,
		string(rec.Status),
		string(rec.Status.Category()),
		rec.CreatedAt.UTC().Format(time.RFC3339),
		rec.UpdatedAt.UTC().Format(time.RFC3339),
		rec.Parameters.Translate,
		rec.Parameters.Speech,
		rec.Parameters.TargetLanguage,
		artifactList(rec.ArtifactPaths),
		kind,
		cause,
	}

	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		if err := f.SetCellValue(SheetName, cell, v); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
	}
	return nil
}

// artifactList names the artifacts a run produced. The original file is
// present on every record and is left out.
func artifactList(paths map[string]string) string {
	keys := make([]string, 0, len(paths))
	for k := range paths {
		if k == records.ArtifactOriginalFile {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
