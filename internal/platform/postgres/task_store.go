package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/platform/logger"
	"github.com/phrazzld/quill/internal/store"
)

// createTaskTableSQL mirrors migration 00001 so Enqueue can create the table
// on a database that was never migrated.
const createTaskTableSQL = `
CREATE TABLE IF NOT EXISTS generation_tasks (
    id           BIGSERIAL PRIMARY KEY,
    trigger_kind TEXT        NOT NULL CHECK (trigger_kind IN ('manual', 'scheduled', 'series', 'rewrite')),
    payload      JSONB       NOT NULL DEFAULT '{}'::jsonb,
    topic_label  TEXT        NOT NULL DEFAULT '',
    status       TEXT        NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
    attempts     INTEGER     NOT NULL DEFAULT 0 CHECK (attempts >= 0),
    last_error   TEXT,
    document_id  BIGINT,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    started_at   TIMESTAMPTZ,
    completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_generation_tasks_status_created
    ON generation_tasks (status, created_at, id);
`

const taskColumns = `id, trigger_kind, payload, topic_label, status, attempts, last_error,
	document_id, created_at, started_at, completed_at`

// TaskStore implements store.TaskStore on the generation_tasks table.
type TaskStore struct {
	db         store.DBTX
	logger     *slog.Logger
	tableReady atomic.Bool
}

var _ store.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates a task store. A nil logger falls back to slog.Default.
func NewTaskStore(db store.DBTX, log *slog.Logger) *TaskStore {
	if log == nil {
		log = slog.Default()
	}
	return &TaskStore{db: db, logger: log.With("component", "task_store")}
}

// ensureTable creates generation_tasks when it is missing.
func (s *TaskStore) ensureTable(ctx context.Context) error {
	if s.tableReady.Load() {
		return nil
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT to_regclass('generation_tasks') IS NOT NULL`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%w: failed to check task table: %v", store.ErrPersistence, err)
	}

	if !exists {
		s.logger.WarnContext(ctx, "task table missing, creating it", "table", "generation_tasks")
		if _, err := s.db.ExecContext(ctx, createTaskTableSQL); err != nil {
			return fmt.Errorf("%w: failed to create task table: %v", store.ErrPersistence, MapError(err))
		}
	}

	s.tableReady.Store(true)
	return nil
}

// Enqueue persists a pending task and returns its id.
func (s *TaskStore) Enqueue(ctx context.Context, payload domain.Payload) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if payload == nil {
		return 0, fmt.Errorf("%w: missing payload", domain.ErrInvalidPayload)
	}
	if err := payload.Validate(); err != nil {
		return 0, err
	}

	kind, data, label, err := encodePayload(payload)
	if err != nil {
		return 0, err
	}

	if err := s.ensureTable(ctx); err != nil {
		return 0, err
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO generation_tasks (trigger_kind, payload, topic_label, status, attempts)
		VALUES ($1, $2, $3, 'pending', 0)
		RETURNING id`,
		string(kind), data, label,
	).Scan(&id)
	if err != nil {
		log.Error("failed to enqueue task", "trigger", kind, "error", err)
		return 0, store.NewStoreError("task", "enqueue", "insert failed",
			fmt.Errorf("%w: %v", store.ErrPersistence, MapError(err)))
	}

	log.Debug("task enqueued", "task_id", id, "trigger", kind)
	return id, nil
}

// Get returns a task by id.
func (s *TaskStore) Get(ctx context.Context, id int64) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM generation_tasks WHERE id = $1`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || IsUndefinedTable(err) {
			return nil, store.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", MapError(err))
	}
	return task, nil
}

// NextEligible returns the oldest pending task with attempts below maxAttempts.
func (s *TaskStore) NextEligible(ctx context.Context, maxAttempts int) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM generation_tasks
		WHERE status = 'pending' AND attempts < $1
		ORDER BY created_at ASC, id ASC
		LIMIT 1`, maxAttempts)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || IsUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find next task: %w", MapError(err))
	}
	return task, nil
}

// MarkProcessing claims a pending task with a conditional update.
func (s *TaskStore) MarkProcessing(ctx context.Context, id int64, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE generation_tasks
		SET status = 'processing', started_at = $2
		WHERE id = $1 AND status = 'pending'`, id, now.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to claim task: %w", MapError(err))
	}
	if err := CheckRowsAffected(result, nil); err == nil {
		return true, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	if _, err := s.currentStatus(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// MarkCompleted moves a processing task to completed. Repeating the call on a
// completed task is a no-op.
func (s *TaskStore) MarkCompleted(ctx context.Context, id int64, documentID int64, now time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE generation_tasks
		SET status = 'completed', document_id = $2, completed_at = $3, last_error = NULL
		WHERE id = $1 AND status = 'processing'`, id, documentID, now.UTC())
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", MapError(err))
	}
	if err := CheckRowsAffected(result, nil); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	st, err := s.currentStatus(ctx, id)
	if err != nil {
		return err
	}
	if st.status == domain.TaskStatusCompleted {
		return nil
	}
	return fmt.Errorf("%w: cannot complete %s task", domain.ErrInvalidTaskStatus, st.status)
}

// MarkFailed records a failed attempt on a processing task. The task goes
// back to pending while attempts stay below maxAttempts and becomes failed
// otherwise. Calls on tasks that are not processing change nothing.
func (s *TaskStore) MarkFailed(
	ctx context.Context,
	id int64,
	reason string,
	maxAttempts int,
	now time.Time,
) (store.FailureOutcome, error) {
	var status string
	var attempts int
	err := s.db.QueryRowContext(ctx, `
		UPDATE generation_tasks
		SET attempts = attempts + 1,
		    last_error = $2,
		    status = CASE WHEN attempts + 1 >= $3::int THEN 'failed' ELSE 'pending' END,
		    completed_at = CASE WHEN attempts + 1 >= $3::int THEN $4::timestamptz ELSE NULL END
		WHERE id = $1 AND status = 'processing'
		RETURNING status, attempts`,
		id, reason, maxAttempts, now.UTC(),
	).Scan(&status, &attempts)

	if errors.Is(err, sql.ErrNoRows) {
		st, err := s.currentStatus(ctx, id)
		if err != nil {
			return store.FailureOutcome{}, err
		}
		return store.FailureOutcome{Status: st.status, Attempts: st.attempts}, nil
	}
	if err != nil {
		return store.FailureOutcome{}, fmt.Errorf("failed to record task failure: %w", MapError(err))
	}

	outcome := store.FailureOutcome{Status: domain.TaskStatus(status), Attempts: attempts}
	outcome.WillRetry = outcome.Status == domain.TaskStatusPending
	return outcome, nil
}

type taskState struct {
	status   domain.TaskStatus
	attempts int
}

func (s *TaskStore) currentStatus(ctx context.Context, id int64) (taskState, error) {
	var st taskState
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status, attempts FROM generation_tasks WHERE id = $1`, id,
	).Scan(&status, &st.attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || IsUndefinedTable(err) {
			return st, store.ErrTaskNotFound
		}
		return st, fmt.Errorf("failed to read task status: %w", MapError(err))
	}
	st.status = domain.TaskStatus(status)
	return st, nil
}

// Stats counts tasks per status.
func (s *TaskStore) Stats(ctx context.Context) (domain.QueueStats, error) {
	var stats domain.QueueStats

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM generation_tasks GROUP BY status`)
	if err != nil {
		if IsUndefinedTable(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("failed to query task stats: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return stats, fmt.Errorf("failed to scan task stats: %w", err)
		}
		stats.Add(domain.TaskStatus(status), n)
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("error iterating task stats: %w", err)
	}
	return stats, nil
}

// Recent returns up to limit tasks, newest first.
func (s *TaskStore) Recent(ctx context.Context, limit int) ([]*domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM generation_tasks
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		if IsUndefinedTable(err) {
			return []*domain.Task{}, nil
		}
		return nil, fmt.Errorf("failed to query recent tasks: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	tasks := []*domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}

// CountStuck counts processing tasks started before olderThan.
func (s *TaskStore) CountStuck(ctx context.Context, olderThan time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM generation_tasks
		WHERE status = 'processing' AND started_at < $1`, olderThan.UTC()).Scan(&n)
	if err != nil {
		if IsUndefinedTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count stuck tasks: %w", MapError(err))
	}
	return n, nil
}

// Cleanup deletes terminal tasks that finished before the cutoff.
func (s *TaskStore) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM generation_tasks
		WHERE status IN ('completed', 'failed') AND completed_at < $1`, before.UTC())
	if err != nil {
		if IsUndefinedTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to clean up tasks: %w", MapError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task        domain.Task
		kind        string
		payload     []byte
		status      string
		lastError   sql.NullString
		documentID  sql.NullInt64
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(
		&task.ID, &kind, &payload, &task.TopicLabel, &status, &task.Attempts, &lastError,
		&documentID, &task.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Payload, err = decodePayload(kind, payload)
	if err != nil {
		return nil, fmt.Errorf("task %d: %w", task.ID, err)
	}
	task.Status = domain.TaskStatus(status)
	task.LastError = lastError.String
	if documentID.Valid {
		id := documentID.Int64
		task.DocumentID = &id
	}
	if startedAt.Valid {
		ts := startedAt.Time
		task.StartedAt = &ts
	}
	if completedAt.Valid {
		ts := completedAt.Time
		task.CompletedAt = &ts
	}
	return &task, nil
}
