package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/lectern/internal/faults"
	"github.com/JaimeStill/lectern/pkg/pagination"
	"github.com/JaimeStill/lectern/pkg/query"
	"github.com/JaimeStill/lectern/pkg/repository"
)

type repo struct {
	db      *sql.DB
	dialect repository.Dialect
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a record store.
type Option func(*repo)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *repo) { r.now = now }
}

// New creates a record store over db using the given SQL dialect.
func New(db *sql.DB, dialect repository.Dialect, logger *slog.Logger, opts ...Option) Store {
	r := &repo{
		db:      db,
		dialect: dialect,
		logger:  logger.With("system", "records"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Record, error) {
	if cmd.UserID == "" || cmd.WorkflowID == "" {
		return nil, faults.Validation("userId and workflowId are required")
	}
	if cmd.OriginalFile == "" {
		return nil, faults.Validation("%s is required", ArtifactOriginalFile)
	}

	ts := r.stamp()

	_, err := repository.WithTx(ctx, r.db, r.dialect, func(tx *sql.Tx) (struct{}, error) {
		if err := r.exec(ctx, tx, `
				INSERT INTO workflows(user_id, workflow_id, status, status_category, translate, speech,
					target_language, history_count, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $8)`,
			cmd.UserID, cmd.WorkflowID,
			string(StatusStarting), string(StatusStarting.Category()),
			cmd.Parameters.Translate, cmd.Parameters.Speech, cmd.Parameters.TargetLanguage,
			ts,
		); err != nil {
			return struct{}{}, err
		}

		if err := r.exec(ctx, tx, `
				INSERT INTO workflow_status_history(user_id, workflow_id, seq, status, recorded_at)
				VALUES ($1, $2, 1, $3, $4)`,
			cmd.UserID, cmd.WorkflowID, string(StatusStarting), ts,
		); err != nil {
			return struct{}{}, err
		}

		return struct{}{}, r.upsertArtifacts(ctx, tx, cmd.UserID, cmd.WorkflowID, map[string]string{
			ArtifactOriginalFile: cmd.OriginalFile,
		})
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("workflow created", "user_id", cmd.UserID, "workflow_id", cmd.WorkflowID)
	return r.Get(ctx, cmd.UserID, cmd.WorkflowID)
}

func (r *repo) Get(ctx context.Context, userID, workflowID string) (*Record, error) {
	q, args := query.NewBuilder(projection).
		WhereEquals("UserID", userID).
		WhereEquals("WorkflowID", workflowID).
		Build()

	rec, err := repository.QueryOne(ctx, r.db, r.dialect, q, args, scanRecord)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	recs := []Record{rec}
	if err := r.loadDetails(ctx, userID, recs); err != nil {
		return nil, err
	}
	return &recs[0], nil
}

func (r *repo) AppendStatus(ctx context.Context, userID, workflowID string, status Status, patch Patch) error {
	if !status.Valid() {
		return faults.Validation("unknown status %q", status)
	}
	if _, ok := patch.Artifacts[ArtifactOriginalFile]; ok {
		return faults.Validation("%s is immutable", ArtifactOriginalFile)
	}

	var kind, cause string
	if patch.Error != nil {
		kind, cause = patch.Error.Error, patch.Error.Cause
	}

	_, err := repository.WithTx(ctx, r.db, r.dialect, func(tx *sql.Tx) (struct{}, error) {
		ts := r.stamp()

		seq, err := repository.QueryOne(ctx, tx, r.dialect, `
				UPDATE workflows
				SET status = $1, status_category = $2, error_kind = $3, error_cause = $4,
					history_count = history_count + 1, updated_at = $5
				WHERE user_id = $6 AND workflow_id = $7 AND status NOT IN ($8, $9, $10)
				RETURNING history_count`,
			[]any{
				string(status), string(status.Category()), kind, cause, ts,
				userID, workflowID,
				string(StatusSucceeded), string(StatusFailed), string(StatusTimedOut),
			},
			scanInt,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return struct{}{}, r.rejectAppend(ctx, tx, userID, workflowID, status)
			}
			return struct{}{}, err
		}

		if err := r.exec(ctx, tx, `
				INSERT INTO workflow_status_history(user_id, workflow_id, seq, status, error_kind, error_cause, recorded_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			userID, workflowID, seq, string(status), kind, cause, ts,
		); err != nil {
			return struct{}{}, err
		}

		return struct{}{}, r.upsertArtifacts(ctx, tx, userID, workflowID, patch.Artifacts)
	})
	if err != nil {
		return err
	}

	r.logger.Info(
		"workflow status appended",
		"user_id", userID,
		"workflow_id", workflowID,
		"status", status,
	)
	return nil
}

func (r *repo) List(ctx context.Context, userID string, lq ListQuery) (*pagination.Page[Record], error) {
	ordering, err := resolveOrdering(lq)
	if err != nil {
		return nil, err
	}

	qb := query.NewBuilder(projection).
		OrderByFields(orderings[ordering]...).
		WhereEquals("UserID", userID)

	if lq.Status != "" {
		qb.WhereEquals("Status", string(lq.Status))
	}
	if lq.Category != "" {
		qb.WhereEquals("Category", string(lq.Category))
	}

	if lq.Cursor != "" {
		key, err := pagination.DecodeCursor[cursorKey](lq.Cursor)
		if err != nil {
			return nil, faults.Validation("invalid cursor")
		}
		if key.Ordering != ordering || key.WorkflowID == "" {
			return nil, faults.Validation("cursor does not match the requested ordering")
		}
		qb.WhereAfter(key.values()...)
	}

	limit := lq.Limit
	fetch := 0
	if limit > 0 {
		fetch = limit + 1
	}

	q, args := qb.BuildLimit(fetch)

	recs, err := repository.QueryMany(ctx, r.db, r.dialect, q, args, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("query workflows: %w", err)
	}

	page, err := pagination.NewPage(recs, limit, keyOf(ordering))
	if err != nil {
		return nil, fmt.Errorf("encode cursor: %w", err)
	}

	if err := r.loadDetails(ctx, userID, page.Items); err != nil {
		return nil, err
	}

	return &page, nil
}

func resolveOrdering(lq ListQuery) (string, error) {
	if lq.SortBy != "" && lq.filtered() {
		return "", faults.Validation("sortBy and filter are mutually exclusive")
	}
	if lq.Status != "" && lq.Category != "" {
		return "", faults.Validation("status and category filters are mutually exclusive")
	}
	if lq.Status != "" && !lq.Status.Valid() {
		return "", faults.Validation("unknown status %q", lq.Status)
	}
	if lq.Category != "" && !lq.Category.Valid() {
		return "", faults.Validation("unknown category %q", lq.Category)
	}

	switch {
	case lq.filtered():
		return orderFiltered, nil
	case lq.SortBy == "" || lq.SortBy == SortCreatedAt:
		return orderCreated, nil
	case lq.SortBy == SortUpdatedAt:
		return orderUpdated, nil
	default:
		return "", faults.Validation("unknown sortBy %q", lq.SortBy)
	}
}

// loadDetails fills history and artifacts for recs, which must share userID.
func (r *repo) loadDetails(ctx context.Context, userID string, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}

	ids := make([]any, len(recs))
	index := make(map[string]int, len(recs))
	for i, rec := range recs {
		ids[i] = rec.WorkflowID
		index[rec.WorkflowID] = i
	}

	var (
		history   []historyRow
		artifacts []artifactRow
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		q, args := query.NewBuilder(historyProjection,
			query.SortField{Field: "WorkflowID"},
			query.SortField{Field: "Seq"},
		).
			WhereEquals("UserID", userID).
			WhereIn("WorkflowID", ids).
			Build()

		rows, err := repository.QueryMany(gctx, r.db, r.dialect, q, args, scanHistory)
		if err != nil {
			return fmt.Errorf("query status history: %w", err)
		}
		history = rows
		return nil
	})

	g.Go(func() error {
		q, args := query.NewBuilder(artifactProjection).
			WhereEquals("UserID", userID).
			WhereIn("WorkflowID", ids).
			Build()

		rows, err := repository.QueryMany(gctx, r.db, r.dialect, q, args, scanArtifact)
		if err != nil {
			return fmt.Errorf("query artifacts: %w", err)
		}
		artifacts = rows
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	for _, h := range history {
		i := index[h.workflowID]
		recs[i].StatusHistory = append(recs[i].StatusHistory, h.entry)
	}
	for _, a := range artifacts {
		recs[index[a.workflowID]].ArtifactPaths[a.name] = a.path
	}

	return nil
}

func (r *repo) rejectAppend(ctx context.Context, tx *sql.Tx, userID, workflowID string, attempted Status) error {
	current, err := repository.QueryOne(ctx, tx, r.dialect,
		"SELECT status FROM workflows WHERE user_id = $1 AND workflow_id = $2",
		[]any{userID, workflowID},
		scanStatus,
	)
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	return &StateError{Current: current, Attempted: attempted}
}

func (r *repo) upsertArtifacts(ctx context.Context, tx *sql.Tx, userID, workflowID string, artifacts map[string]string) error {
	for _, name := range slices.Sorted(maps.Keys(artifacts)) {
		if err := r.exec(ctx, tx, `
			INSERT INTO workflow_artifacts(user_id, workflow_id, name, path)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, workflow_id, name) DO UPDATE SET path = excluded.path`,
			userID, workflowID, name, artifacts[name],
		); err != nil {
			return fmt.Errorf("upsert artifact %s: %w", name, err)
		}
	}
	return nil
}

func (r *repo) exec(ctx context.Context, e repository.Executor, q string, args ...any) error {
	_, err := repository.Exec(ctx, e, r.dialect, q, args...)
	return err
}

func (r *repo) stamp() int64 {
	return r.now().UnixMicro()
}
