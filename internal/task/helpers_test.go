package task

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/quill/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fakeScheduler records armed hooks and fires them on demand.
type fakeScheduler struct {
	mu        sync.Mutex
	delays    map[string]time.Duration
	fns       map[string]func()
	recurring map[string]string
	history   []time.Duration

	RecurringErr error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		delays:    make(map[string]time.Duration),
		fns:       make(map[string]func()),
		recurring: make(map[string]string),
	}
}

func (f *fakeScheduler) ScheduleOnce(hook string, delay time.Duration, fn func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.fns[hook]; ok {
		return false
	}
	f.delays[hook] = delay
	f.fns[hook] = fn
	f.history = append(f.history, delay)
	return true
}

func (f *fakeScheduler) IsScheduled(hook string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.fns[hook]
	return ok
}

func (f *fakeScheduler) ScheduleRecurring(hook, frequency string, _ func()) error {
	if f.RecurringErr != nil {
		return f.RecurringErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if frequency == config.FrequencyNone || frequency == "" {
		delete(f.recurring, hook)
		return nil
	}
	f.recurring[hook] = frequency
	return nil
}

// armed returns the delay hook is armed with.
func (f *fakeScheduler) armed(hook string) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.delays[hook]
	if _, armed := f.fns[hook]; !armed {
		return 0, false
	}
	return d, ok
}

// fire disarms hook and runs its callback, as the real timer does.
func (f *fakeScheduler) fire(hook string) bool {
	f.mu.Lock()
	fn, ok := f.fns[hook]
	delete(f.fns, hook)
	delete(f.delays, hook)
	f.mu.Unlock()
	if ok {
		fn()
	}
	return ok
}

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			Provider: "mock",
		},
		Queue: config.QueueConfig{
			MaxAttempts:   3,
			RetryDelay:    5 * time.Minute,
			RearmDelay:    10 * time.Second,
			StuckAfter:    time.Hour,
			RetentionDays: 7,
		},
		Schedule: config.ScheduleConfig{
			Enabled:   false,
			Frequency: config.FrequencyDaily,
		},
	}
}
