// Package schedule arms named hooks: one-shot delayed callbacks for the task
// runner and cron-backed recurring callbacks for scheduled generation.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/quill/internal/config"
	"github.com/robfig/cron/v3"
)

// ErrUnknownFrequency is returned for a recurrence name with no cron mapping.
var ErrUnknownFrequency = errors.New("unknown schedule frequency")

// Hook names used by the application.
const (
	HookProcessQueue = "process_queue"
	HookGenerate     = "scheduled_generation"
)

// CronSpec maps a frequency name to a cron spec. FrequencyNone and the empty
// string map to "" which means "not scheduled".
func CronSpec(frequency string) (string, error) {
	switch frequency {
	case config.FrequencyHourly:
		return "@hourly", nil
	case config.FrequencyTwiceDaily:
		return "@every 12h", nil
	case config.FrequencyDaily:
		return "@daily", nil
	case config.FrequencyWeekly:
		return "@weekly", nil
	case config.FrequencyNone, "":
		return "", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFrequency, frequency)
	}
}

type onceEntry struct {
	timer *time.Timer
	at    time.Time
}

type recurringEntry struct {
	id        cron.EntryID
	frequency string
}

// Timer arms hooks by name. At most one one-shot callback and one recurring
// callback exist per hook.
type Timer struct {
	mu        sync.Mutex
	once      map[string]*onceEntry
	recurring map[string]recurringEntry
	cron      *cron.Cron
	logger    *slog.Logger
	now       func() time.Time
	stopped   bool
}

// NewTimer creates a timer whose recurring schedule runs in UTC. Call Start
// to begin firing recurring hooks.
func NewTimer(logger *slog.Logger) *Timer {
	log := logger.With("component", "timer")
	cl := cronLogger{logger: log}
	return &Timer{
		once:      make(map[string]*onceEntry),
		recurring: make(map[string]recurringEntry),
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: log,
		now:    time.Now,
	}
}

// Start begins the recurring scheduler.
func (t *Timer) Start() {
	t.cron.Start()
}

// Stop cancels every pending one-shot callback and stops the recurring
// scheduler, waiting for running recurring jobs until ctx expires.
func (t *Timer) Stop(ctx context.Context) error {
	t.mu.Lock()
	t.stopped = true
	for hook, e := range t.once {
		e.timer.Stop()
		delete(t.once, hook)
	}
	t.mu.Unlock()

	select {
	case <-t.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ScheduleOnce arms fn to run after delay. It does nothing and returns false
// when hook is already armed.
func (t *Timer) ScheduleOnce(hook string, delay time.Duration, fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return false
	}
	if _, armed := t.once[hook]; armed {
		return false
	}

	entry := &onceEntry{at: t.now().Add(delay)}
	entry.timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		if t.once[hook] != entry {
			t.mu.Unlock()
			return
		}
		delete(t.once, hook)
		t.mu.Unlock()

		t.logger.Debug("hook fired", "hook", hook)
		fn()
	})
	t.once[hook] = entry

	t.logger.Debug("hook armed", "hook", hook, "delay", delay.String())
	return true
}

// IsScheduled reports whether hook has a pending one-shot or recurring callback.
func (t *Timer) IsScheduled(hook string) bool {
	_, ok := t.Next(hook)
	return ok
}

// Next returns the earliest time hook will fire.
func (t *Timer) Next(hook string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var next time.Time
	found := false
	if e, ok := t.once[hook]; ok {
		next, found = e.at, true
	}
	if r, ok := t.recurring[hook]; ok {
		if e := t.cron.Entry(r.id); e.Valid() {
			at := e.Next
			if at.IsZero() {
				// Not started yet; compute from the schedule.
				at = e.Schedule.Next(t.now())
			}
			if !found || at.Before(next) {
				next, found = at, true
			}
		}
	}
	return next, found
}

// ScheduleRecurring runs fn on the cron schedule of frequency, replacing any
// earlier recurrence of hook. FrequencyNone removes the recurrence.
func (t *Timer) ScheduleRecurring(hook, frequency string, fn func()) error {
	spec, err := CronSpec(frequency)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.recurring[hook]; ok {
		if existing.frequency == frequency && spec != "" {
			return nil
		}
		t.cron.Remove(existing.id)
		delete(t.recurring, hook)
	}

	if spec == "" {
		t.logger.Info("recurring hook cleared", "hook", hook)
		return nil
	}

	id, err := t.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", hook, err)
	}
	t.recurring[hook] = recurringEntry{id: id, frequency: frequency}

	t.logger.Info("recurring hook scheduled", "hook", hook, "frequency", frequency, "spec", spec)
	return nil
}

// Frequency returns the recurrence of hook, or "" when none is set.
func (t *Timer) Frequency(hook string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recurring[hook].frequency
}

// Unschedule removes every pending callback for hook.
func (t *Timer) Unschedule(hook string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.once[hook]; ok {
		e.timer.Stop()
		delete(t.once, hook)
	}
	if r, ok := t.recurring[hook]; ok {
		t.cron.Remove(r.id)
		delete(t.recurring, hook)
	}
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
