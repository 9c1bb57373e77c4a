package store

import (
	"context"
	"time"

	"github.com/phrazzld/quill/internal/domain"
)

// FailureOutcome describes the state a task was left in by MarkFailed.
type FailureOutcome struct {
	Status   domain.TaskStatus
	Attempts int
	// WillRetry is true when the task went back to pending.
	WillRetry bool
}

// TaskStore is the durable queue of generation tasks.
//
// Every transition is idempotent: repeating a call that already produced its
// target state changes nothing. Reads tolerate a missing backing table by
// returning zero values.
type TaskStore interface {
	// Enqueue persists a pending task with zero attempts and returns its id.
	// It creates the backing table on first use if it is absent.
	Enqueue(ctx context.Context, payload domain.Payload) (int64, error)

	// Get returns a task by id or ErrTaskNotFound.
	Get(ctx context.Context, id int64) (*domain.Task, error)

	// NextEligible returns the oldest pending task whose attempt count is below
	// maxAttempts, or nil when there is none.
	NextEligible(ctx context.Context, maxAttempts int) (*domain.Task, error)

	// MarkProcessing claims a pending task. It reports false without error if
	// the task was no longer pending.
	MarkProcessing(ctx context.Context, id int64, now time.Time) (bool, error)

	// MarkCompleted records the result document of a processing task.
	MarkCompleted(ctx context.Context, id int64, documentID int64, now time.Time) error

	// MarkFailed increments the attempt count of a processing task and moves it
	// to pending (attempts below maxAttempts) or failed.
	MarkFailed(ctx context.Context, id int64, reason string, maxAttempts int, now time.Time) (FailureOutcome, error)

	// Stats returns task counts per status.
	Stats(ctx context.Context) (domain.QueueStats, error)

	// Recent returns up to limit tasks, newest first.
	Recent(ctx context.Context, limit int) ([]*domain.Task, error)

	// CountStuck counts processing tasks whose start is older than olderThan.
	CountStuck(ctx context.Context, olderThan time.Time) (int, error)

	// Cleanup deletes completed and failed tasks finished before the cutoff and
	// returns how many were removed.
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}
