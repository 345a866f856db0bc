package callbacks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JaimeStill/lectern/internal/events"
	"github.com/JaimeStill/lectern/internal/faults"
	"github.com/JaimeStill/lectern/internal/services"
	"github.com/JaimeStill/lectern/pkg/repository"
)

type bridge struct {
	db        *sql.DB
	dialect   repository.Dialect
	submitter Submitter
	retry     services.RetryPolicy
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.RWMutex
	resumer Resumer
}

// Option configures a bridge.
type Option func(*bridge)

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(b *bridge) { b.now = now }
}

// New creates a callback bridge storing tokens in db.
func New(
	db *sql.DB,
	dialect repository.Dialect,
	submitter Submitter,
	retry services.RetryPolicy,
	logger *slog.Logger,
	opts ...Option,
) Bridge {
	b := &bridge{
		db:        db,
		dialect:   dialect,
		submitter: submitter,
		retry:     retry,
		logger:    logger.With("system", "callbacks"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *bridge) Bind(r Resumer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resumer = r
}

func (b *bridge) Handler(validator Validator) *Handler {
	return NewHandler(b, validator, b.logger)
}

func (b *bridge) Submit(ctx context.Context, documentRef string) (string, error) {
	attempts := max(b.retry.Attempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		jobID, err := b.submitter.Submit(ctx, documentRef)
		if err == nil {
			if jobID == "" {
				return "", faults.Processing("extraction accepted %s without a job id", documentRef)
			}
			return jobID, nil
		}

		lastErr = err
		if !services.Retryable(err) || attempt == attempts {
			break
		}

		delay := b.retry.Delay(attempt)
		b.logger.Warn(
			"extraction submit failed, retrying",
			"document_ref", documentRef,
			"attempt", attempt,
			"backoff", delay,
			"error", err,
		)
		if err := services.Sleep(ctx, delay); err != nil {
			return "", faults.External(services.ServiceExtraction, errors.Join(lastErr, err))
		}
	}

	if errors.Is(lastErr, faults.ErrExternalService) {
		return "", lastErr
	}
	return "", faults.External(services.ServiceExtraction, lastErr)
}

func (b *bridge) PersistToken(
	ctx context.Context,
	externalJobID, resumeToken string,
	backref Backref,
	ttl time.Duration,
) error {
	expires := b.now().Add(ttl).UnixMicro()

	_, err := repository.RetryOnBusy(ctx, b.dialect, func() (int64, error) {
		return repository.Exec(ctx, b.db, b.dialect, `
			INSERT INTO job_tokens(external_job_id, resume_token, user_id, workflow_id, input_ref, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			externalJobID, resumeToken, backref.UserID, backref.WorkflowID, backref.InputRef, expires,
		)
	})
	if err != nil {
		return faults.Storage("persist job token", repository.MapError(err, ErrNotFound, ErrDuplicateToken))
	}

	b.logger.Info("job token persisted", "job_id", externalJobID, "workflow_id", backref.WorkflowID)
	return nil
}

func (b *bridge) Resume(ctx context.Context, externalJobID string, outcome Outcome) error {
	token, err := b.consume(ctx, externalJobID)
	if errors.Is(err, ErrNotFound) {
		b.logger.Info("ignoring completion for unknown or consumed job", "job_id", externalJobID)
		return nil
	}
	if err != nil {
		return faults.Storage("consume job token", err)
	}

	b.mu.RLock()
	resumer := b.resumer
	b.mu.RUnlock()
	if resumer == nil {
		return ErrNoResumer
	}

	b.logger.Info(
		"resuming suspended workflow",
		"job_id", externalJobID,
		"workflow_id", token.Backref.WorkflowID,
		"succeeded", outcome.Succeeded,
	)
	return resumer.Resume(ctx, *token, outcome)
}

func (b *bridge) Reap(ctx context.Context, now time.Time) (int, error) {
	n, err := repository.RetryOnBusy(ctx, b.dialect, func() (int64, error) {
		return repository.Exec(ctx, b.db, b.dialect,
			"DELETE FROM job_tokens WHERE expires_at < $1", now.UnixMicro(),
		)
	})
	if err != nil {
		return 0, fmt.Errorf("reap job tokens: %w", err)
	}
	return int(n), nil
}

func (b *bridge) HandleSignal(ctx context.Context, payload []byte) {
	var signal events.ArtifactSignal
	if err := json.Unmarshal(payload, &signal); err != nil {
		b.logger.Warn("dropping undecodable artifact signal", "error", err)
		return
	}
	if err := b.Resume(ctx, signal.JobID, OutcomeFromSignal(signal)); err != nil {
		b.logger.Error("artifact signal resume failed", "job_id", signal.JobID, "error", err)
	}
}

// consume deletes the token and returns its contents. Deleting before acting
// makes the resume at-most-once under redelivery.
func (b *bridge) consume(ctx context.Context, externalJobID string) (*Token, error) {
	return repository.RetryOnBusy(ctx, b.dialect, func() (*Token, error) {
		t, err := repository.QueryOne(ctx, b.db, b.dialect, `
			DELETE FROM job_tokens WHERE external_job_id = $1
			RETURNING external_job_id, resume_token, user_id, workflow_id, input_ref, expires_at`,
			[]any{externalJobID},
			scanToken,
		)
		if err != nil {
			return nil, repository.MapError(err, ErrNotFound, ErrDuplicateToken)
		}
		return &t, nil
	})
}

func scanToken(s repository.Scanner) (Token, error) {
	var (
		t       Token
		expires int64
	)
	err := s.Scan(
		&t.ExternalJobID,
		&t.ResumeToken,
		&t.Backref.UserID,
		&t.Backref.WorkflowID,
		&t.Backref.InputRef,
		&expires,
	)
	t.ExpiresAt = time.UnixMicro(expires).UTC()
	return t, err
}
