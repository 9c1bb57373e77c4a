package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/phrazzld/quill/internal/config"
	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/generation"
	"github.com/phrazzld/quill/internal/mocks"
	"github.com/phrazzld/quill/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type fakeClock map[string]time.Time

func (c fakeClock) Next(hook string) (time.Time, bool) {
	t, ok := c[hook]
	return t, ok
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func baseRuntime() config.Runtime {
	return config.Runtime{
		Provider: config.ProviderOpenAI,
		Providers: map[string]config.ProviderSettings{
			config.ProviderOpenAI: {APIKey: "sk-test"},
			config.ProviderGemini: {},
			config.ProviderOllama: {Endpoint: "http://localhost:11434"},
		},
		Queue: config.QueueConfig{StuckAfter: time.Hour},
	}
}

func seedStats(tasks *mocks.MockTaskStore, pending, processing, completed, failed int) {
	id := int64(0)
	add := func(status domain.TaskStatus, n int) {
		for i := 0; i < n; i++ {
			id++
			t := &domain.Task{ID: id, Status: status, Payload: domain.ScheduledPayload{}, CreatedAt: now}
			switch status {
			case domain.TaskStatusProcessing:
				started := now.Add(-time.Minute)
				t.StartedAt = &started
			case domain.TaskStatusCompleted, domain.TaskStatusFailed:
				done := now
				t.CompletedAt = &done
			}
			tasks.Put(t)
		}
	}
	add(domain.TaskStatusPending, pending)
	add(domain.TaskStatusProcessing, processing)
	add(domain.TaskStatusCompleted, completed)
	add(domain.TaskStatusFailed, failed)
}

func newReporter(tasks *mocks.MockTaskStore, clock fakeClock, rt config.Runtime, registry *generation.Registry) *Reporter {
	r := NewReporter(fakePinger{}, tasks, clock, func(context.Context) config.Runtime { return rt }, registry, testLogger())
	r.now = func() time.Time { return now }
	return r
}

func TestReport_FailureRateWarning(t *testing.T) {
	t.Parallel()

	tasks := mocks.NewMockTaskStore()
	seedStats(tasks, 2, 1, 3, 4)
	clock := fakeClock{schedule.HookProcessQueue: now.Add(10 * time.Second)}

	report := newReporter(tasks, clock, baseRuntime(), nil).Report(context.Background(), false)

	assert.Equal(t, domain.QueueStats{Pending: 2, Processing: 1, Completed: 3, Failed: 4}, report.Queue.Stats)
	assert.Equal(t, 10, report.Queue.Total)
	assert.InDelta(t, 40.0, report.Queue.FailureRate, 0.001)
	assert.Equal(t, StatusWarning, report.Queue.Status)
	assert.Zero(t, report.Queue.Stuck)
	assert.True(t, report.Queue.Trigger.Scheduled)
	require.NotNil(t, report.Queue.Trigger.NextRun)
	assert.Equal(t, StatusWarning, report.Status)
}

func TestReport_FailureRateError(t *testing.T) {
	t.Parallel()

	tasks := mocks.NewMockTaskStore()
	seedStats(tasks, 0, 0, 1, 2)

	report := newReporter(tasks, fakeClock{}, baseRuntime(), nil).Report(context.Background(), false)
	assert.InDelta(t, 66.67, report.Queue.FailureRate, 0.001)
	assert.Equal(t, StatusError, report.Queue.Status)
	assert.Equal(t, StatusError, report.Status)
}

func TestReport_HealthyEmptyQueue(t *testing.T) {
	t.Parallel()

	report := newReporter(mocks.NewMockTaskStore(), fakeClock{}, baseRuntime(), nil).Report(context.Background(), false)

	assert.Equal(t, StatusHealthy, report.Queue.Status)
	assert.Zero(t, report.Queue.FailureRate)
	assert.False(t, report.Queue.Trigger.Scheduled)
	assert.Equal(t, StatusHealthy, report.Database.Status)
	assert.Equal(t, StatusNotConfigured, report.Schedule.Status)
	assert.Equal(t, StatusNotConfigured, report.Images.Status)
	assert.Equal(t, StatusHealthy, report.LLM.Status)
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, now, report.Timestamp)
}

func TestReport_StuckTasks(t *testing.T) {
	t.Parallel()

	tasks := mocks.NewMockTaskStore()
	started := now.Add(-2 * time.Hour)
	tasks.Put(&domain.Task{ID: 1, Status: domain.TaskStatusProcessing, Payload: domain.ScheduledPayload{}, StartedAt: &started})

	report := newReporter(tasks, fakeClock{}, baseRuntime(), nil).Report(context.Background(), false)
	assert.Equal(t, 1, report.Queue.Stuck)
	assert.Equal(t, StatusWarning, report.Queue.Status)
	assert.Contains(t, report.Queue.Issues[0], "stuck")
}

func TestReport_PendingWithoutTrigger(t *testing.T) {
	t.Parallel()

	tasks := mocks.NewMockTaskStore()
	seedStats(tasks, 1, 0, 0, 0)

	report := newReporter(tasks, fakeClock{}, baseRuntime(), nil).Report(context.Background(), false)
	assert.Equal(t, StatusWarning, report.Queue.Status)
}

func TestReport_QueueStoreError(t *testing.T) {
	t.Parallel()

	tasks := mocks.NewMockTaskStore()
	tasks.StatsErr = errors.New("connection refused")

	report := newReporter(tasks, fakeClock{}, baseRuntime(), nil).Report(context.Background(), false)
	assert.Equal(t, StatusError, report.Queue.Status)
	assert.Equal(t, StatusError, report.Status)
}

func TestReport_DatabaseDown(t *testing.T) {
	t.Parallel()

	rt := baseRuntime()
	r := NewReporter(fakePinger{err: errors.New("dial tcp: refused")}, mocks.NewMockTaskStore(), fakeClock{},
		func(context.Context) config.Runtime { return rt }, nil, testLogger())

	report := r.Report(context.Background(), false)
	assert.Equal(t, StatusError, report.Database.Status)
	assert.Equal(t, StatusError, report.Status)
}

func TestReport_Schedule(t *testing.T) {
	t.Parallel()

	rt := baseRuntime()
	rt.Schedule = config.ScheduleConfig{Enabled: true, Frequency: config.FrequencyDaily}

	armed := newReporter(mocks.NewMockTaskStore(), fakeClock{schedule.HookGenerate: now.Add(time.Hour)}, rt, nil).
		Report(context.Background(), false)
	assert.Equal(t, StatusHealthy, armed.Schedule.Status)
	assert.True(t, armed.Schedule.Trigger.Scheduled)

	unarmed := newReporter(mocks.NewMockTaskStore(), fakeClock{}, rt, nil).Report(context.Background(), false)
	assert.Equal(t, StatusWarning, unarmed.Schedule.Status)
}

func TestReport_ActiveProviderWithoutCredential(t *testing.T) {
	t.Parallel()

	rt := baseRuntime()
	rt.Provider = config.ProviderGemini

	report := newReporter(mocks.NewMockTaskStore(), fakeClock{}, rt, nil).Report(context.Background(), false)
	assert.Equal(t, StatusError, report.LLM.Status)
	assert.Equal(t, StatusNotConfigured, report.LLM.Providers[config.ProviderGemini].Status)
	assert.True(t, report.LLM.Providers[config.ProviderGemini].Active)
	assert.Equal(t, StatusHealthy, report.LLM.Providers[config.ProviderOpenAI].Status)
	assert.False(t, report.LLM.Probed)
}

func TestReport_Probe(t *testing.T) {
	t.Parallel()

	registry := generation.NewRegistry(testLogger())
	registry.Register(config.ProviderOpenAI, func(cfg generation.ProviderConfig, _ *slog.Logger) (generation.Provider, error) {
		return &mocks.MockProvider{NameValue: config.ProviderOpenAI, Err: errors.New("401 unauthorized")}, nil
	})
	registry.Register(config.ProviderOllama, func(cfg generation.ProviderConfig, _ *slog.Logger) (generation.Provider, error) {
		return &mocks.MockProvider{NameValue: config.ProviderOllama, Output: "ok"}, nil
	})

	report := newReporter(mocks.NewMockTaskStore(), fakeClock{}, baseRuntime(), registry).Report(context.Background(), true)

	assert.True(t, report.LLM.Probed)
	assert.Equal(t, StatusError, report.LLM.Providers[config.ProviderOpenAI].Status)
	assert.Contains(t, report.LLM.Providers[config.ProviderOpenAI].Message, "401")
	assert.Equal(t, StatusHealthy, report.LLM.Providers[config.ProviderOllama].Status)
	assert.Equal(t, StatusNotConfigured, report.LLM.Providers[config.ProviderGemini].Status)
	assert.Equal(t, StatusError, report.LLM.Status)
	assert.NotEmpty(t, report.LLM.Issues)
}

func TestCheckImages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(rt *config.Runtime)
		want   Status
	}{
		{name: "disabled without key", want: StatusNotConfigured},
		{
			name:   "enabled without key",
			mutate: func(rt *config.Runtime) { rt.Features.AutoImage = true },
			want:   StatusError,
		},
		{
			name:   "inline enabled without key",
			mutate: func(rt *config.Runtime) { rt.Features.InlineImages = true },
			want:   StatusError,
		},
		{
			name: "gemini key fallback",
			mutate: func(rt *config.Runtime) {
				rt.Features.AutoImage = true
				rt.Providers[config.ProviderGemini] = config.ProviderSettings{APIKey: "g"}
			},
			want: StatusHealthy,
		},
		{
			name:   "dedicated key",
			mutate: func(rt *config.Runtime) { rt.Image.APIKey = "img" },
			want:   StatusHealthy,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rt := baseRuntime()
			if tc.mutate != nil {
				tc.mutate(&rt)
			}
			assert.Equal(t, tc.want, checkImages(rt).Status)
		})
	}
}

func TestWorst(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StatusHealthy, Worst())
	assert.Equal(t, StatusHealthy, Worst(StatusNotConfigured, StatusHealthy))
	assert.Equal(t, StatusWarning, Worst(StatusHealthy, StatusWarning, StatusNotConfigured))
	assert.Equal(t, StatusError, Worst(StatusWarning, StatusError, StatusHealthy))
}

// ctxPinger fails like database/sql does once its context is done.
type ctxPinger struct{}

func (ctxPinger) PingContext(ctx context.Context) error { return ctx.Err() }

func TestReport_IgnoresCallerCancellation(t *testing.T) {
	t.Parallel()

	tasks := mocks.NewMockTaskStore()
	seedStats(tasks, 0, 0, 5, 0)
	r := NewReporter(ctxPinger{}, tasks, fakeClock{}, func(context.Context) config.Runtime { return baseRuntime() }, nil, testLogger())
	r.now = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := r.Report(ctx, false)
	assert.Equal(t, StatusHealthy, report.Database.Status)
	assert.Equal(t, 5, report.Queue.Total)
}
