package workflows

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/JaimeStill/lectern/internal/executions"
	"github.com/JaimeStill/lectern/internal/faults"
	"github.com/JaimeStill/lectern/internal/orchestrator"
	"github.com/JaimeStill/lectern/internal/records"
	"github.com/JaimeStill/lectern/pkg/pagination"
	"github.com/JaimeStill/lectern/pkg/storage"
)

// Launcher starts the run of a recorded workflow.
type Launcher interface {
	Launch(ctx context.Context, in orchestrator.RunInput) (*executions.Execution, error)
}

type service struct {
	records    records.Store
	executions executions.System
	launcher   Launcher
	storage    storage.System
	pagination pagination.Config
	logger     *slog.Logger
}

// New creates the workflows system.
func New(
	store records.Store,
	execs executions.System,
	launcher Launcher,
	blobs storage.System,
	pagination pagination.Config,
	logger *slog.Logger,
) System {
	return &service{
		records:    store,
		executions: execs,
		launcher:   launcher,
		storage:    blobs,
		pagination: pagination,
		logger:     logger.With("system", "workflows"),
	}
}

func (s *service) Handler(maxUploadSize int64) *Handler {
	return NewHandler(s, s.logger, s.pagination, maxUploadSize)
}

func (s *service) Start(ctx context.Context, cmd StartCommand) (string, error) {
	params, err := validateParameters(cmd.Parameters)
	if err != nil {
		return "", err
	}
	if cmd.UserID == "" {
		return "", faults.Validation("userId is required")
	}
	if cmd.InputRef == "" {
		return "", faults.Validation("inputRef is required")
	}
	if !ownsInput(cmd.UserID, cmd.InputRef) {
		return "", faults.Validation("input %s is not owned by the caller", cmd.InputRef)
	}

	exists, err := s.storage.Exists(ctx, cmd.InputRef)
	if err != nil {
		if errors.Is(err, storage.ErrEmptyKey) || errors.Is(err, storage.ErrInvalidKey) {
			return "", faults.Validation("%v", err)
		}
		return "", faults.Storage("check input", err)
	}
	if !exists {
		return "", faults.Validation("input %s not found", cmd.InputRef)
	}

	workflowID := uuid.NewString()
	if _, err := s.records.Create(ctx, records.CreateCommand{
		UserID:       cmd.UserID,
		WorkflowID:   workflowID,
		Parameters:   params,
		OriginalFile: cmd.InputRef,
	}); err != nil {
		return "", err
	}

	exec, err := s.launcher.Launch(ctx, orchestrator.RunInput{
		UserID:     cmd.UserID,
		WorkflowID: workflowID,
		InputRef:   cmd.InputRef,
		Parameters: params,
	})
	if err != nil {
		if appendErr := s.records.AppendStatus(ctx, cmd.UserID, workflowID, records.StatusFailed, records.Patch{
			Error: &records.ErrorInfo{Error: faults.Kind(err), Cause: err.Error()},
		}); appendErr != nil {
			s.logger.Error("recording launch failure failed", "workflow_id", workflowID, "error", appendErr)
		}
		return "", fmt.Errorf("launch workflow: %w", err)
	}

	s.logger.Info(
		"workflow started",
		"user_id", cmd.UserID,
		"workflow_id", workflowID,
		"execution_id", exec.ID,
	)
	return workflowID, nil
}

func (s *service) Upload(ctx context.Context, cmd UploadCommand) (string, error) {
	if _, err := validateParameters(cmd.Parameters); err != nil {
		return "", err
	}
	if len(cmd.Data) == 0 {
		return "", faults.Validation("uploaded file is empty")
	}

	key := buildUploadKey(cmd.UserID, uuid.New(), sanitizeFilename(cmd.Filename))
	ref, err := s.storage.Put(ctx, key, bytes.NewReader(cmd.Data), cmd.ContentType)
	if err != nil {
		return "", faults.Storage("upload document", err)
	}

	id, err := s.Start(ctx, StartCommand{UserID: cmd.UserID, InputRef: ref, Parameters: cmd.Parameters})
	if err != nil && errors.Is(err, faults.ErrValidation) {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
	}
	return id, err
}

func (s *service) Get(ctx context.Context, userID, workflowID string) (*View, error) {
	rec, err := s.records.Get(ctx, userID, workflowID)
	if err != nil {
		return nil, err
	}

	view := &View{Record: *rec}

	exec, err := s.executions.Latest(ctx, userID, workflowID)
	switch {
	case err == nil:
		view.Execution = &ExecutionView{
			ID:        exec.ID,
			Status:    exec.Status,
			StartedAt: exec.StartedAt,
			Deadline:  exec.Deadline,
			StoppedAt: exec.StoppedAt,
		}
	case errors.Is(err, executions.ErrNotFound):
	default:
		return nil, faults.Storage("load execution", err)
	}

	return view, nil
}

func (s *service) List(ctx context.Context, userID string, q records.ListQuery) (*pagination.Page[records.Record], error) {
	return s.records.List(ctx, userID, q)
}

// validateParameters normalizes the target language to its canonical BCP 47 form.
func validateParameters(p records.Parameters) (records.Parameters, error) {
	if p.Translate && p.TargetLanguage == "" {
		return p, faults.Validation("targetLanguage is required when translate is set")
	}
	if p.TargetLanguage == "" {
		return p, nil
	}

	tag, err := language.Parse(p.TargetLanguage)
	if err != nil {
		return p, faults.Validation("invalid targetLanguage %q: %v", p.TargetLanguage, err)
	}
	p.TargetLanguage = tag.String()
	return p, nil
}

// ownsInput reports whether ref lies under one of the caller's blob prefixes:
// their uploads or the artifacts of their own workflows.
func ownsInput(userID, ref string) bool {
	owner := url.PathEscape(userID)
	for _, root := range []string{"uploads", "workflows"} {
		if strings.HasPrefix(ref, root+"/"+owner+"/") {
			return true
		}
	}
	return false
}

func buildUploadKey(userID string, id uuid.UUID, filename string) string {
	return fmt.Sprintf("uploads/%s/%s/%s", url.PathEscape(userID), id, filename)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == ".." || name == "" || name == "/" {
		name = "document"
	}
	return url.PathEscape(name)
}
