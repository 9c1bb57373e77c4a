package postgres

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newMockTaskStore(t *testing.T) (*TaskStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewTaskStore(db, testLogger()), mock
}

var taskRowColumns = []string{
	"id", "trigger_kind", "payload", "topic_label", "status", "attempts", "last_error",
	"document_id", "created_at", "started_at", "completed_at",
}

func TestTaskStore_EnqueueCreatesMissingTableOnce(t *testing.T) {
	s, mock := newMockTaskStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT to_regclass('generation_tasks')")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS generation_tasks")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO generation_tasks")).
		WithArgs("manual", sqlmock.AnyArg(), "Go generics").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO generation_tasks")).
		WithArgs("rewrite", sqlmock.AnyArg(), "document #9").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))

	id, err := s.Enqueue(ctx, domain.ManualPayload{TopicText: "Go generics"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	id, err = s.Enqueue(ctx, domain.RewritePayload{DocumentID: 9})
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStore_EnqueueRejectsInvalidPayload(t *testing.T) {
	s, mock := newMockTaskStore(t)

	_, err := s.Enqueue(context.Background(), domain.SeriesPayload{SeriesID: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	_, err = s.Enqueue(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStore_EnqueueInsertError(t *testing.T) {
	s, mock := newMockTaskStore(t)
	s.tableReady.Store(true)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO generation_tasks")).
		WillReturnError(sql.ErrConnDone)

	_, err := s.Enqueue(context.Background(), domain.ScheduledPayload{})
	assert.ErrorIs(t, err, store.ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStore_NextEligible(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("returns decoded task", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'pending' AND attempts < $1")).
			WithArgs(3).
			WillReturnRows(sqlmock.NewRows(taskRowColumns).AddRow(
				int64(4), "series", []byte(`{"series_id":2,"topic_text":"Part two"}`), "Part two",
				"pending", 1, "timeout", nil, created, nil, nil,
			))

		task, err := s.NextEligible(ctx, 3)
		require.NoError(t, err)
		require.NotNil(t, task)
		assert.Equal(t, int64(4), task.ID)
		assert.Equal(t, domain.SeriesPayload{SeriesID: 2, TopicText: "Part two"}, task.Payload)
		assert.Equal(t, 1, task.Attempts)
		assert.Equal(t, "timeout", task.LastError)
		assert.Nil(t, task.DocumentID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty queue", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM generation_tasks")).
			WillReturnRows(sqlmock.NewRows(taskRowColumns))

		task, err := s.NextEligible(ctx, 3)
		assert.NoError(t, err)
		assert.Nil(t, task)
	})

	t.Run("missing table reads as empty", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM generation_tasks")).
			WillReturnError(&pgconn.PgError{Code: "42P01"})

		task, err := s.NextEligible(ctx, 3)
		assert.NoError(t, err)
		assert.Nil(t, task)
	})
}

func TestTaskStore_MarkProcessing(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("claims pending task", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectExec(regexp.QuoteMeta("SET status = 'processing'")).
			WithArgs(int64(1), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := s.MarkProcessing(ctx, 1, now)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("already claimed", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectExec(regexp.QuoteMeta("SET status = 'processing'")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT status, attempts FROM generation_tasks")).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"status", "attempts"}).AddRow("processing", 0))

		ok, err := s.MarkProcessing(ctx, 1, now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown task", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectExec(regexp.QuoteMeta("SET status = 'processing'")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT status, attempts FROM generation_tasks")).
			WillReturnRows(sqlmock.NewRows([]string{"status", "attempts"}))

		_, err := s.MarkProcessing(ctx, 1, now)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}

func TestTaskStore_MarkCompleted(t *testing.T) {
	ctx := context.Background()

	t.Run("repeat on completed task is a no-op", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectExec(regexp.QuoteMeta("SET status = 'completed'")).
			WithArgs(int64(2), int64(10), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT status, attempts FROM generation_tasks")).
			WillReturnRows(sqlmock.NewRows([]string{"status", "attempts"}).AddRow("completed", 0))

		assert.NoError(t, s.MarkCompleted(ctx, 2, 10, time.Now()))
	})

	t.Run("pending task cannot complete", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectExec(regexp.QuoteMeta("SET status = 'completed'")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT status, attempts FROM generation_tasks")).
			WillReturnRows(sqlmock.NewRows([]string{"status", "attempts"}).AddRow("pending", 1))

		assert.ErrorIs(t, s.MarkCompleted(ctx, 2, 10, time.Now()), domain.ErrInvalidTaskStatus)
	})
}

func TestTaskStore_MarkFailed(t *testing.T) {
	ctx := context.Background()

	t.Run("returns to pending below the limit", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("SET attempts = attempts + 1")).
			WithArgs(int64(3), "provider down", 3, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"status", "attempts"}).AddRow("pending", 1))

		out, err := s.MarkFailed(ctx, 3, "provider down", 3, time.Now())
		require.NoError(t, err)
		assert.Equal(t, store.FailureOutcome{Status: domain.TaskStatusPending, Attempts: 1, WillRetry: true}, out)
	})

	t.Run("fails at the limit", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("SET attempts = attempts + 1")).
			WillReturnRows(sqlmock.NewRows([]string{"status", "attempts"}).AddRow("failed", 3))

		out, err := s.MarkFailed(ctx, 3, "provider down", 3, time.Now())
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFailed, out.Status)
		assert.False(t, out.WillRetry)
	})

	t.Run("not processing leaves task unchanged", func(t *testing.T) {
		s, mock := newMockTaskStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("SET attempts = attempts + 1")).
			WillReturnRows(sqlmock.NewRows([]string{"status", "attempts"}))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT status, attempts FROM generation_tasks")).
			WillReturnRows(sqlmock.NewRows([]string{"status", "attempts"}).AddRow("failed", 3))

		out, err := s.MarkFailed(ctx, 3, "again", 3, time.Now())
		require.NoError(t, err)
		assert.Equal(t, store.FailureOutcome{Status: domain.TaskStatusFailed, Attempts: 3}, out)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTaskStore_Stats(t *testing.T) {
	s, mock := newMockTaskStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 2).
			AddRow("failed", 1).
			AddRow("completed", 4))

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStats{Pending: 2, Completed: 4, Failed: 1}, stats)
	assert.Equal(t, 7, stats.Total())
}

func TestTaskStore_ReadsTolerateMissingTable(t *testing.T) {
	ctx := context.Background()
	missing := &pgconn.PgError{Code: "42P01"}
	s, mock := newMockTaskStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).WillReturnError(missing)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).WillReturnError(missing)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM generation_tasks")).WillReturnError(missing)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM generation_tasks")).WillReturnError(missing)

	stats, err := s.Stats(ctx)
	assert.NoError(t, err)
	assert.Zero(t, stats.Total())

	recent, err := s.Recent(ctx, 10)
	assert.NoError(t, err)
	assert.Empty(t, recent)

	stuck, err := s.CountStuck(ctx, time.Now())
	assert.NoError(t, err)
	assert.Zero(t, stuck)

	removed, err := s.Cleanup(ctx, time.Now())
	assert.NoError(t, err)
	assert.Zero(t, removed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStore_Cleanup(t *testing.T) {
	s, mock := newMockTaskStore(t)
	cutoff := time.Now().Add(-7 * 24 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("WHERE status IN ('completed', 'failed') AND completed_at < $1")).
		WithArgs(cutoff.UTC()).
		WillReturnResult(sqlmock.NewResult(0, 5))

	n, err := s.Cleanup(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}
