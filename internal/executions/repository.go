package executions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/lectern/internal/events"
	"github.com/JaimeStill/lectern/pkg/query"
	"github.com/JaimeStill/lectern/pkg/repository"
)

// Causes attached to forced-terminal events.
const (
	causeTimedOut = "execution deadline exceeded"
	causeAborted  = "execution aborted by request"
)

var projection = query.
	NewProjectionMap("", "executions", "e").
	Project("execution_id", "ID").
	Project("user_id", "UserID").
	Project("workflow_id", "WorkflowID").
	Project("input", "Input").
	Project("status", "Status").
	Project("started_at", "StartedAt").
	Project("deadline_at", "Deadline").
	Project("stopped_at", "StoppedAt")

type repo struct {
	db        *sql.DB
	dialect   repository.Dialect
	publisher events.Publisher
	reaper    Reaper
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an execution system.
type Option func(*repo)

// WithClock overrides the time source used for timestamps and deadlines.
func WithClock(now func() time.Time) Option {
	return func(r *repo) { r.now = now }
}

// WithReaper sets the token reaper invoked by Sweep.
func WithReaper(reaper Reaper) Option {
	return func(r *repo) { r.reaper = reaper }
}

// New creates an execution system. Forced-terminal events are sent through publisher.
func New(
	db *sql.DB,
	dialect repository.Dialect,
	publisher events.Publisher,
	logger *slog.Logger,
	opts ...Option,
) System {
	r := &repo{
		db:        db,
		dialect:   dialect,
		publisher: publisher,
		logger:    logger.With("system", "executions"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *repo) Start(
	ctx context.Context,
	userID, workflowID string,
	input json.RawMessage,
	timeout time.Duration,
) (*Execution, error) {
	now := r.now()
	exec := Execution{
		ID:         uuid.NewString(),
		UserID:     userID,
		WorkflowID: workflowID,
		Input:      input,
		Status:     StatusRunning,
		StartedAt:  fromMicros(now.UnixMicro()),
		Deadline:   fromMicros(now.Add(timeout).UnixMicro()),
	}

	_, err := repository.RetryOnBusy(ctx, r.dialect, func() (int64, error) {
		return repository.Exec(ctx, r.db, r.dialect, `
			INSERT INTO executions(execution_id, user_id, workflow_id, input, status, started_at, deadline_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			exec.ID, userID, workflowID, string(input), string(StatusRunning),
			exec.StartedAt.UnixMicro(), exec.Deadline.UnixMicro(),
		)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("execution started", "execution_id", exec.ID, "workflow_id", workflowID, "deadline", exec.Deadline)
	return &exec, nil
}

func (r *repo) Get(ctx context.Context, id string) (*Execution, error) {
	q, args := query.NewBuilder(projection).WhereEquals("ID", id).Build()

	e, err := repository.QueryOne(ctx, r.db, r.dialect, q, args, scanExecution)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &e, nil
}

func (r *repo) Latest(ctx context.Context, userID, workflowID string) (*Execution, error) {
	q, args := query.NewBuilder(projection,
		query.SortField{Field: "StartedAt", Descending: true},
		query.SortField{Field: "ID", Descending: true},
	).
		WhereEquals("UserID", userID).
		WhereEquals("WorkflowID", workflowID).
		BuildLimit(1)

	e, err := repository.QueryOne(ctx, r.db, r.dialect, q, args, scanExecution)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &e, nil
}

func (r *repo) Complete(ctx context.Context, id string, status Status) error {
	if _, err := r.transition(ctx, id, status, false); err != nil {
		return err
	}
	r.logger.Info("execution completed", "execution_id", id, "status", status)
	return nil
}

func (r *repo) Abort(ctx context.Context, id string) error {
	exec, err := r.transition(ctx, id, StatusAborted, true)
	if err != nil {
		return err
	}

	r.logger.Info("execution aborted", "execution_id", id)
	if err := r.deliver(ctx, exec); err != nil {
		r.logger.Error("publish abort event failed, left pending for sweep", "execution_id", id, "error", err)
	}
	return nil
}

func (r *repo) Sweep(ctx context.Context) (int, error) {
	now := r.now()

	q, args := query.NewBuilder(projection, query.SortField{Field: "Deadline"}).
		WhereEquals("Status", string(StatusRunning)).
		Build()

	running, err := repository.QueryMany(ctx, r.db, r.dialect, q, args, scanExecution)
	if err != nil {
		return 0, fmt.Errorf("query running executions: %w", err)
	}

	timedOut := 0
	for _, e := range running {
		if !e.Deadline.Before(now) {
			break
		}

		if _, err := r.transition(ctx, e.ID, StatusTimedOut, true); err != nil {
			r.logger.Debug("skipping execution during sweep", "execution_id", e.ID, "error", err)
			continue
		}

		timedOut++
		r.logger.Warn("execution timed out", "execution_id", e.ID, "workflow_id", e.WorkflowID)
	}

	if err := r.flush(ctx); err != nil {
		r.logger.Error("pending terminal events query failed", "error", err)
	}

	if r.reaper != nil {
		if n, err := r.reaper.Reap(ctx, now); err != nil {
			r.logger.Error("token reap failed", "error", err)
		} else if n > 0 {
			r.logger.Info("expired job tokens reaped", "count", n)
		}
	}

	return timedOut, nil
}

func (r *repo) Watchdog(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("execution watchdog started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("execution watchdog stopped")
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("execution sweep failed", "error", err)
			}
		}
	}
}

// transition moves a RUNNING execution to status and returns its updated state.
// A forced transition also marks the execution's terminal event as pending in
// the same statement, so a failed publish is retried by the next Sweep.
func (r *repo) transition(ctx context.Context, id string, status Status, forced bool) (*Execution, error) {
	stopped := r.now().UnixMicro()
	pending := 0
	if forced {
		pending = 1
	}

	return repository.WithTx(ctx, r.db, r.dialect, func(tx *sql.Tx) (*Execution, error) {
		n, err := repository.Exec(ctx, tx, r.dialect, `
			UPDATE executions SET status = $1, stopped_at = $2, event_pending = $3
			WHERE execution_id = $4 AND status = $5`,
			string(status), stopped, pending, id, string(StatusRunning),
		)
		if err != nil {
			return nil, err
		}

		sel, selArgs := query.NewBuilder(projection).WhereEquals("ID", id).Build()

		e, err := repository.QueryOne(ctx, tx, r.dialect, sel, selArgs, scanExecution)
		if err != nil {
			return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
		}
		if n == 0 {
			return nil, &NotRunningError{ID: id, Status: e.Status}
		}
		return &e, nil
	})
}

// flush publishes the terminal event of every execution still marked pending.
// Redelivery is absorbed by the record store's terminal guard.
func (r *repo) flush(ctx context.Context) error {
	pending, err := repository.QueryMany(ctx, r.db, r.dialect, `
		SELECT execution_id, user_id, workflow_id, input, status, started_at, deadline_at, stopped_at
		FROM executions WHERE event_pending = 1
		ORDER BY stopped_at, execution_id`,
		nil, scanExecution,
	)
	if err != nil {
		return err
	}

	for _, e := range pending {
		if err := r.deliver(ctx, &e); err != nil {
			r.logger.Error("publish terminal event failed", "execution_id", e.ID, "status", e.Status, "error", err)
		}
	}
	return nil
}

// deliver publishes the forced-terminal event for e and clears its pending mark.
func (r *repo) deliver(ctx context.Context, e *Execution) error {
	cause := causeTimedOut
	if e.Status == StatusAborted {
		cause = causeAborted
	}

	if err := r.publisher.Publish(ctx, events.TopicTerminal, events.TerminalEvent{
		ExecutionID: e.ID,
		Status:      string(e.Status),
		Input:       e.Input,
		Cause:       cause,
	}); err != nil {
		return err
	}

	_, err := repository.RetryOnBusy(ctx, r.dialect, func() (int64, error) {
		return repository.Exec(ctx, r.db, r.dialect,
			"UPDATE executions SET event_pending = 0 WHERE execution_id = $1", e.ID,
		)
	})
	if err != nil {
		return fmt.Errorf("clear pending event: %w", err)
	}
	return nil
}

func scanExecution(s repository.Scanner) (Execution, error) {
	var (
		e                 Execution
		input, status     string
		started, deadline int64
		stopped           sql.NullInt64
	)
	if err := s.Scan(&e.ID, &e.UserID, &e.WorkflowID, &input, &status, &started, &deadline, &stopped); err != nil {
		return e, err
	}
	e.Input = json.RawMessage(input)
	e.Status = Status(status)
	e.StartedAt = fromMicros(started)
	e.Deadline = fromMicros(deadline)
	if stopped.Valid {
		t := fromMicros(stopped.Int64)
		e.StoppedAt = &t
	}
	return e, nil
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}
