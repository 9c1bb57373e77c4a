package task

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/quill/internal/config"
	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/schedule"
	"github.com/phrazzld/quill/internal/store"
)

// Executor turns one claimed task into a stored document.
type Executor interface {
	Execute(ctx context.Context, rt config.Runtime, task *domain.Task) (documentID int64, err error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, rt config.Runtime, task *domain.Task) (int64, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, rt config.Runtime, task *domain.Task) (int64, error) {
	return f(ctx, rt, task)
}

// Outcome summarises a single queue run.
type Outcome struct {
	RunID      string            `json:"run_id"`
	TaskID     int64             `json:"task_id,omitempty"`
	Status     domain.TaskStatus `json:"status,omitempty"`
	Attempts   int               `json:"attempts"`
	DocumentID int64             `json:"document_id,omitempty"`
	Error      string            `json:"error,omitempty"`
	// Skipped is true when another run held the lock or the task was claimed
	// elsewhere.
	Skipped bool `json:"skipped,omitempty"`
}

// Idle reports whether the run found nothing to do.
func (o Outcome) Idle() bool {
	return o.TaskID == 0 && !o.Skipped
}

// Runner processes the queue one task per run.
type Runner struct {
	queue    *Queue
	store    store.TaskStore
	exec     Executor
	base     *config.Config
	settings config.SettingsSource
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	ctxMu  sync.RWMutex
	runCtx context.Context
}

// NewRunner creates a runner and attaches it to the queue as the
// process_queue callback. settings may be nil, in which case only the
// static configuration is used.
func NewRunner(
	queue *Queue,
	exec Executor,
	base *config.Config,
	settings config.SettingsSource,
	logger *slog.Logger,
) *Runner {
	r := &Runner{
		queue:    queue,
		store:    queue.store,
		exec:     exec,
		base:     base,
		settings: settings,
		logger:   logger.With("component", "runner"),
		now:      func() time.Time { return time.Now().UTC() },
		runCtx:   context.Background(),
	}
	queue.SetProcessor(r.fire)
	return r
}

// Start binds hook-fired runs to ctx, applies the recurring schedule and
// arms the queue when tasks survived a restart.
func (r *Runner) Start(ctx context.Context) error {
	r.ctxMu.Lock()
	r.runCtx = ctx
	r.ctxMu.Unlock()

	if err := r.ApplySchedule(ctx); err != nil {
		return err
	}

	rt := r.runtime(ctx, r.logger)
	next, err := r.store.NextEligible(ctx, rt.Queue.MaxAttempts)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to check for pending tasks at startup", "error", err)
		return nil
	}
	if next != nil {
		r.queue.Arm(0)
		r.logger.InfoContext(ctx, "pending tasks found at startup, queue armed")
	}
	return nil
}

// ApplySchedule arms or clears the recurring generation hook according to
// the current schedule settings.
func (r *Runner) ApplySchedule(ctx context.Context) error {
	rt := r.runtime(ctx, r.logger)
	frequency := config.FrequencyNone
	if rt.Schedule.Enabled {
		frequency = rt.Schedule.Frequency
	}
	if err := r.queue.timer.ScheduleRecurring(schedule.HookGenerate, frequency, r.scheduled); err != nil {
		return fmt.Errorf("failed to apply generation schedule: %w", err)
	}
	r.logger.InfoContext(ctx, "generation schedule applied",
		"enabled", rt.Schedule.Enabled,
		"frequency", frequency)
	return nil
}

func (r *Runner) baseContext() context.Context {
	r.ctxMu.RLock()
	defer r.ctxMu.RUnlock()
	return r.runCtx
}

func (r *Runner) fire() {
	ctx := r.baseContext()
	if ctx.Err() != nil {
		return
	}
	if _, err := r.RunOnce(ctx); err != nil {
		r.logger.ErrorContext(ctx, "queue run failed", "error", err)
	}
}

func (r *Runner) scheduled() {
	ctx := r.baseContext()
	if ctx.Err() != nil {
		return
	}
	if _, err := r.EnqueueScheduled(ctx); err != nil {
		r.logger.ErrorContext(ctx, "scheduled generation failed", "error", err)
	}
}

// EnqueueScheduled adds a scheduled task when scheduling is enabled. It
// returns zero without error when it is disabled.
func (r *Runner) EnqueueScheduled(ctx context.Context) (int64, error) {
	rt := r.runtime(ctx, r.logger)
	if !rt.Schedule.Enabled {
		r.logger.DebugContext(ctx, "scheduled generation skipped: schedule disabled")
		return 0, nil
	}
	return r.queue.Enqueue(ctx, domain.ScheduledPayload{})
}

// Runtime returns the settings snapshot a run started now would use.
func (r *Runner) Runtime(ctx context.Context) config.Runtime {
	return r.runtime(ctx, r.logger)
}

// runtime resolves the settings snapshot of one run. An unreadable settings
// store falls back to the static configuration.
func (r *Runner) runtime(ctx context.Context, log *slog.Logger) config.Runtime {
	if r.settings == nil {
		return r.base.Runtime()
	}
	rt, err := config.ResolveRuntime(ctx, r.base, r.settings)
	if err != nil {
		log.WarnContext(ctx, "failed to resolve runtime settings, using static configuration", "error", err)
		return r.base.Runtime()
	}
	return rt
}

// RunOnce processes at most one task. The returned error reports queue
// storage failures; a failing task is recorded in the Outcome instead.
//
// Once the lock is held, every exit path checks for further eligible work
// and re-arms the queue. Execution and the state transitions that follow a
// claim run on a context that ignores cancellation of ctx, so a disconnected
// caller or a shutdown signal cannot abort a task partway through.
func (r *Runner) RunOnce(ctx context.Context) (Outcome, error) {
	out := Outcome{RunID: uuid.NewString()}
	log := r.logger.With("run_id", out.RunID)

	if !r.mu.TryLock() {
		log.DebugContext(ctx, "queue run already in progress")
		out.Skipped = true
		return out, nil
	}
	defer r.mu.Unlock()

	work := context.WithoutCancel(ctx)
	rt := r.runtime(work, log)
	maxAttempts := rt.Queue.MaxAttempts
	defer r.rearm(work, log, rt)

	t, err := r.store.NextEligible(ctx, maxAttempts)
	if err != nil {
		return out, fmt.Errorf("failed to select next task: %w", err)
	}
	if t == nil {
		log.DebugContext(ctx, "no eligible tasks")
		return out, nil
	}

	out.TaskID = t.ID
	log = log.With("task_id", t.ID, "trigger", t.Trigger())

	claimed, err := r.store.MarkProcessing(work, t.ID, r.now())
	if err != nil {
		return out, fmt.Errorf("failed to claim task %d: %w", t.ID, err)
	}
	if !claimed {
		log.InfoContext(work, "task claimed by another run")
		out.Skipped = true
		return out, nil
	}

	log.InfoContext(work, "processing task", "attempt", t.Attempts+1, "provider", rt.Provider)
	start := time.Now()

	docID, execErr := r.execute(work, rt, t)
	if execErr == nil {
		if err := r.store.MarkCompleted(work, t.ID, docID, r.now()); err != nil {
			log.ErrorContext(work, "failed to record task completion",
				"document_id", docID,
				"error", err)
			return out, fmt.Errorf("failed to complete task %d: %w", t.ID, err)
		}
		out.Status = domain.TaskStatusCompleted
		out.Attempts = t.Attempts
		out.DocumentID = docID
		log.InfoContext(work, "task completed",
			"document_id", docID,
			"duration", time.Since(start))
		return out, nil
	}

	result, err := r.store.MarkFailed(work, t.ID, execErr.Error(), maxAttempts, r.now())
	if err != nil {
		log.ErrorContext(work, "failed to record task failure",
			"task_error", execErr,
			"error", err)
		return out, fmt.Errorf("failed to record failure of task %d: %w", t.ID, err)
	}
	out.Status = result.Status
	out.Attempts = result.Attempts
	out.Error = execErr.Error()

	if result.WillRetry {
		r.queue.Arm(rt.Queue.RetryDelay)
		log.WarnContext(work, "task failed, will retry",
			"attempts", result.Attempts,
			"retry_in", rt.Queue.RetryDelay,
			"error", execErr)
	} else {
		log.ErrorContext(work, "task failed permanently",
			"attempts", result.Attempts,
			"error", execErr)
	}
	return out, nil
}

// rearm arms the next run when eligible tasks remain. When the store cannot
// answer, the queue is armed anyway so a transient failure does not stall it.
// Arm is a no-op while a retry is already armed.
func (r *Runner) rearm(ctx context.Context, log *slog.Logger, rt config.Runtime) {
	next, err := r.store.NextEligible(ctx, rt.Queue.MaxAttempts)
	switch {
	case err != nil:
		log.WarnContext(ctx, "failed to check for further tasks, re-arming", "error", err)
		r.queue.Arm(rt.Queue.RearmDelay)
	case next != nil:
		r.queue.Arm(rt.Queue.RearmDelay)
	}
}

func (r *Runner) execute(ctx context.Context, rt config.Runtime, t *domain.Task) (docID int64, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.ErrorContext(ctx, "task execution panicked",
				"task_id", t.ID,
				"panic", p,
				"stack", string(debug.Stack()))
			docID = 0
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, p)
		}
	}()
	return r.exec.Execute(ctx, rt, t)
}
