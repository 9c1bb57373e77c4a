package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/schedule"
	"github.com/phrazzld/quill/internal/store"
)

// Scheduler arms named hooks. It is satisfied by *schedule.Timer.
type Scheduler interface {
	// ScheduleOnce arms hook after delay unless it is already armed.
	ScheduleOnce(hook string, delay time.Duration, fn func()) bool
	IsScheduled(hook string) bool
	ScheduleRecurring(hook, frequency string, fn func()) error
}

var _ Scheduler = (*schedule.Timer)(nil)

// Queue persists generation requests and arms the process_queue hook.
type Queue struct {
	store  store.TaskStore
	timer  Scheduler
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	process func()
}

// NewQueue creates a queue backed by taskStore. The processing callback is
// attached later with SetProcessor.
func NewQueue(taskStore store.TaskStore, timer Scheduler, logger *slog.Logger) *Queue {
	return &Queue{
		store:  taskStore,
		timer:  timer,
		logger: logger.With("component", "queue"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetProcessor sets the callback fired by the process_queue hook.
func (q *Queue) SetProcessor(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.process = fn
}

// Enqueue validates and persists a pending task, then arms the hook to fire
// immediately if it is not armed yet.
func (q *Queue) Enqueue(ctx context.Context, payload domain.Payload) (int64, error) {
	if payload == nil {
		return 0, fmt.Errorf("%w: missing payload", domain.ErrInvalidPayload)
	}
	if err := payload.Validate(); err != nil {
		return 0, err
	}

	id, err := q.store.Enqueue(ctx, payload)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue %s task: %w", payload.Kind(), err)
	}

	armed := q.Arm(0)
	q.logger.InfoContext(ctx, "task enqueued",
		"task_id", id,
		"trigger", payload.Kind(),
		"armed", armed)
	return id, nil
}

// Arm schedules the next queue run after delay. It reports false when the
// hook was already armed or no processor is attached.
func (q *Queue) Arm(delay time.Duration) bool {
	q.mu.RLock()
	fn := q.process
	q.mu.RUnlock()
	if fn == nil {
		return false
	}
	armed := q.timer.ScheduleOnce(schedule.HookProcessQueue, delay, fn)
	if armed {
		q.logger.Debug("process_queue armed", "delay", delay)
	}
	return armed
}

// Armed reports whether a queue run is pending.
func (q *Queue) Armed() bool {
	return q.timer.IsScheduled(schedule.HookProcessQueue)
}

// Cleanup deletes completed and failed tasks that finished more than days
// days ago.
func (q *Queue) Cleanup(ctx context.Context, days int) (int64, error) {
	if days < 1 {
		return 0, ErrInvalidRetention
	}
	cutoff := q.now().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := q.store.Cleanup(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up tasks: %w", err)
	}
	q.logger.InfoContext(ctx, "finished tasks cleaned up",
		"retention_days", days,
		"deleted", n)
	return n, nil
}
