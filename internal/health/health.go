// Package health reports the state of the generation pipeline: database
// reachability, queue statistics, hook schedules, provider credentials and
// image generation configuration.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/phrazzld/quill/internal/config"
	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/generation"
	"github.com/phrazzld/quill/internal/schedule"
	"github.com/phrazzld/quill/internal/store"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Status is the result of one check. Worse statuses rank higher.
type Status string

const (
	StatusHealthy       Status = "healthy"
	StatusNotConfigured Status = "not_configured"
	StatusWarning       Status = "warning"
	StatusError         Status = "error"
)

func (s Status) rank() int {
	switch s {
	case StatusError:
		return 3
	case StatusWarning:
		return 2
	default:
		return 0
	}
}

// Worst returns the most severe of statuses. not_configured counts as healthy.
func Worst(statuses ...Status) Status {
	worst := StatusHealthy
	for _, s := range statuses {
		if s.rank() > worst.rank() {
			worst = s
		}
	}
	return worst
}

// Failure rate thresholds, in percent.
const (
	FailureRateError   = 50.0
	FailureRateWarning = 25.0
)

const probePrompt = "Health check test"

// DatabaseReport describes database reachability.
type DatabaseReport struct {
	Status Status   `json:"status"`
	Issues []string `json:"issues,omitempty"`
}

// TriggerReport describes one armed hook.
type TriggerReport struct {
	Scheduled bool       `json:"scheduled"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

// QueueReport describes the task queue.
type QueueReport struct {
	Status      Status            `json:"status"`
	Stats       domain.QueueStats `json:"statistics"`
	Total       int               `json:"total"`
	Stuck       int               `json:"stuck"`
	FailureRate float64           `json:"failure_rate"`
	Trigger     TriggerReport     `json:"trigger"`
	Issues      []string          `json:"issues,omitempty"`
}

// ScheduleReport describes the recurring generation schedule.
type ScheduleReport struct {
	Status    Status        `json:"status"`
	Enabled   bool          `json:"enabled"`
	Frequency string        `json:"frequency"`
	Trigger   TriggerReport `json:"trigger"`
	Issues    []string      `json:"issues,omitempty"`
}

// ProviderReport describes one text provider.
type ProviderReport struct {
	Status         Status  `json:"status"`
	Message        string  `json:"message"`
	Active         bool    `json:"active"`
	ResponseTimeMS float64 `json:"response_time_ms,omitempty"`
}

// LLMReport describes the text providers.
type LLMReport struct {
	Status         Status                    `json:"status"`
	ActiveProvider string                    `json:"active_provider"`
	Probed         bool                      `json:"probed"`
	Providers      map[string]ProviderReport `json:"providers"`
	Issues         []string                  `json:"issues,omitempty"`
}

// ImageReport describes image generation.
type ImageReport struct {
	Status              Status   `json:"status"`
	AutoGenerateEnabled bool     `json:"auto_generate_enabled"`
	InlineEnabled       bool     `json:"inline_enabled"`
	APIKeyConfigured    bool     `json:"api_key_configured"`
	Model               string   `json:"model,omitempty"`
	Issues              []string `json:"issues,omitempty"`
}

// Report is the full diagnostics snapshot.
type Report struct {
	Status    Status         `json:"overall_status"`
	Database  DatabaseReport `json:"database"`
	Queue     QueueReport    `json:"queue"`
	Schedule  ScheduleReport `json:"schedule"`
	LLM       LLMReport      `json:"llm_api"`
	Images    ImageReport    `json:"image_generation"`
	Timestamp time.Time      `json:"timestamp"`
}

// Pinger checks database connectivity. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HookClock reports when hooks fire next. *schedule.Timer satisfies it.
type HookClock interface {
	Next(hook string) (time.Time, bool)
}

// RuntimeFunc returns the current settings snapshot.
type RuntimeFunc func(ctx context.Context) config.Runtime

// Reporter assembles diagnostics reports. Concurrent requests for the same
// kind of report share one evaluation.
type Reporter struct {
	db        Pinger
	tasks     store.TaskStore
	clock     HookClock
	runtime   RuntimeFunc
	providers *generation.Registry
	logger    *slog.Logger
	now       func() time.Time

	// ProbeTimeout bounds each live provider call.
	ProbeTimeout time.Duration
	// ReportTimeout bounds one shared report build.
	ReportTimeout time.Duration

	group singleflight.Group
}

// NewReporter creates a reporter. db and providers may be nil, which skips
// the database check and live probes respectively.
func NewReporter(
	db Pinger,
	tasks store.TaskStore,
	clock HookClock,
	runtime RuntimeFunc,
	providers *generation.Registry,
	logger *slog.Logger,
) *Reporter {
	return &Reporter{
		db:           db,
		tasks:        tasks,
		clock:        clock,
		runtime:      runtime,
		providers:    providers,
		logger:       logger.With("component", "health"),
		now:          func() time.Time { return time.Now().UTC() },
		ProbeTimeout:  30 * time.Second,
		ReportTimeout: 45 * time.Second,
	}
}

// Report runs every check. When probe is true each provider with
// credentials is called with a short prompt; otherwise only the presence of
// credentials is reported.
//
// Concurrent calls share one build, which runs detached from the caller's
// cancellation and is bounded by ReportTimeout.
func (r *Reporter) Report(ctx context.Context, probe bool) *Report {
	key := "report"
	if probe {
		key = "report-probe"
	}
	v, _, _ := r.group.Do(key, func() (interface{}, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.ReportTimeout)
		defer cancel()
		return r.build(buildCtx, probe), nil
	})
	return v.(*Report)
}

func (r *Reporter) build(ctx context.Context, probe bool) *Report {
	rt := r.runtime(ctx)
	report := &Report{Timestamp: r.now()}

	var g errgroup.Group
	g.Go(func() error {
		report.Database = r.checkDatabase(ctx)
		return nil
	})
	g.Go(func() error {
		report.Queue = r.checkQueue(ctx, rt)
		return nil
	})
	g.Go(func() error {
		report.LLM = r.checkLLM(ctx, rt, probe)
		return nil
	})
	report.Schedule = r.checkSchedule(rt)
	report.Images = checkImages(rt)
	_ = g.Wait()

	report.Status = Worst(
		report.Database.Status,
		report.Queue.Status,
		report.Schedule.Status,
		report.LLM.Status,
		report.Images.Status,
	)

	r.logger.DebugContext(ctx, "health report built",
		"status", report.Status,
		"probe", probe)
	return report
}

func (r *Reporter) checkDatabase(ctx context.Context) DatabaseReport {
	if r.db == nil {
		return DatabaseReport{Status: StatusNotConfigured}
	}
	if err := r.db.PingContext(ctx); err != nil {
		return DatabaseReport{
			Status: StatusError,
			Issues: []string{fmt.Sprintf("database is unreachable: %v", err)},
		}
	}
	return DatabaseReport{Status: StatusHealthy}
}

func (r *Reporter) trigger(hook string) TriggerReport {
	next, ok := r.clock.Next(hook)
	if !ok {
		return TriggerReport{}
	}
	next = next.UTC()
	return TriggerReport{Scheduled: true, NextRun: &next}
}

func (r *Reporter) checkQueue(ctx context.Context, rt config.Runtime) QueueReport {
	rep := QueueReport{Status: StatusHealthy}

	stats, err := r.tasks.Stats(ctx)
	if err != nil {
		rep.Status = StatusError
		rep.Issues = append(rep.Issues, fmt.Sprintf("failed to read queue statistics: %v", err))
		return rep
	}
	rep.Stats = stats
	rep.Total = stats.Total()

	stuckAfter := rt.Queue.StuckAfter
	if stuckAfter <= 0 {
		stuckAfter = time.Hour
	}
	stuck, err := r.tasks.CountStuck(ctx, r.now().Add(-stuckAfter))
	if err != nil {
		rep.Status = StatusError
		rep.Issues = append(rep.Issues, fmt.Sprintf("failed to count stuck tasks: %v", err))
	} else if stuck > 0 {
		rep.Stuck = stuck
		rep.Status = Worst(rep.Status, StatusWarning)
		rep.Issues = append(rep.Issues,
			fmt.Sprintf("%d task(s) have been stuck in processing state for over %s", stuck, stuckAfter))
	}

	if rep.Total > 0 {
		rate := float64(stats.Failed) / float64(rep.Total) * 100
		rep.FailureRate = math.Round(rate*100) / 100
		switch {
		case rep.FailureRate > FailureRateError:
			rep.Status = StatusError
			rep.Issues = append(rep.Issues, fmt.Sprintf("High failure rate: %.2f%%", rep.FailureRate))
		case rep.FailureRate > FailureRateWarning:
			rep.Status = Worst(rep.Status, StatusWarning)
			rep.Issues = append(rep.Issues, fmt.Sprintf("Elevated failure rate: %.2f%%", rep.FailureRate))
		}
	}

	rep.Trigger = r.trigger(schedule.HookProcessQueue)
	if !rep.Trigger.Scheduled && stats.Pending > 0 {
		rep.Status = Worst(rep.Status, StatusWarning)
		rep.Issues = append(rep.Issues, "Pending tasks exist but queue processing is not scheduled")
	}

	return rep
}

func (r *Reporter) checkSchedule(rt config.Runtime) ScheduleReport {
	rep := ScheduleReport{
		Status:    StatusHealthy,
		Enabled:   rt.Schedule.Enabled,
		Frequency: rt.Schedule.Frequency,
		Trigger:   r.trigger(schedule.HookGenerate),
	}
	if !rep.Enabled {
		rep.Status = StatusNotConfigured
		return rep
	}
	if rep.Frequency == "" || rep.Frequency == config.FrequencyNone {
		rep.Status = StatusWarning
		rep.Issues = append(rep.Issues, "Scheduled generation is enabled without a frequency")
		return rep
	}
	if !rep.Trigger.Scheduled {
		rep.Status = StatusWarning
		rep.Issues = append(rep.Issues, "Scheduled generation is enabled but not scheduled")
	}
	return rep
}

// credentialConfigured reports whether the settings of the named provider
// carry the credential that provider requires.
func credentialConfigured(name string, s config.ProviderSettings) bool {
	if name == config.ProviderOllama {
		return s.Endpoint != ""
	}
	return s.APIKey != ""
}

func (r *Reporter) checkLLM(ctx context.Context, rt config.Runtime, probe bool) LLMReport {
	rep := LLMReport{
		Status:         StatusHealthy,
		ActiveProvider: rt.Provider,
		Probed:         probe && r.providers != nil,
		Providers:      make(map[string]ProviderReport),
	}

	names := make([]string, 0, len(rt.Providers))
	for name := range rt.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		settings := rt.Providers[name]
		pr := ProviderReport{Active: name == rt.Provider}
		set := func(pr ProviderReport) {
			mu.Lock()
			rep.Providers[name] = pr
			mu.Unlock()
		}
		if !credentialConfigured(name, settings) {
			pr.Status = StatusNotConfigured
			pr.Message = "credential not configured"
			set(pr)
			continue
		}
		if !rep.Probed {
			pr.Status = StatusHealthy
			pr.Message = "credential configured"
			set(pr)
			continue
		}
		g.Go(func() error {
			probed := r.probe(gctx, name, settings)
			probed.Active = pr.Active
			set(probed)
			return nil
		})
	}
	_ = g.Wait()

	active, ok := rep.Providers[rt.Provider]
	switch {
	case !ok:
		rep.Status = StatusError
		rep.Issues = append(rep.Issues, fmt.Sprintf("Active provider %q is unknown", rt.Provider))
	case active.Status == StatusNotConfigured:
		rep.Status = StatusError
		rep.Issues = append(rep.Issues, fmt.Sprintf("%s credential not configured (active provider)", rt.Provider))
	case active.Status != StatusHealthy:
		rep.Status = StatusError
		rep.Issues = append(rep.Issues, fmt.Sprintf("%s (active provider) is not working: %s", rt.Provider, active.Message))
	}
	return rep
}

func (r *Reporter) probe(ctx context.Context, name string, s config.ProviderSettings) ProviderReport {
	provider, err := r.providers.Select(name, generation.ProviderConfig{
		APIKey:   s.APIKey,
		Endpoint: s.Endpoint,
		Model:    s.Model,
	})
	if err != nil {
		return ProviderReport{Status: StatusError, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, r.ProbeTimeout)
	defer cancel()

	start := time.Now()
	out, err := provider.Complete(ctx, probePrompt)
	elapsed := math.Round(float64(time.Since(start).Microseconds())/10) / 100

	switch {
	case err != nil:
		r.logger.WarnContext(ctx, "provider probe failed", "provider", name, "error", err)
		return ProviderReport{Status: StatusError, Message: err.Error(), ResponseTimeMS: elapsed}
	case out == "":
		return ProviderReport{Status: StatusWarning, Message: "API returned empty response", ResponseTimeMS: elapsed}
	default:
		return ProviderReport{Status: StatusHealthy, Message: "API connection successful", ResponseTimeMS: elapsed}
	}
}

func checkImages(rt config.Runtime) ImageReport {
	rep := ImageReport{
		Status:              StatusHealthy,
		AutoGenerateEnabled: rt.Features.AutoImage,
		InlineEnabled:       rt.Features.InlineImages,
		APIKeyConfigured:    rt.ImageAPIKey() != "",
		Model:               rt.Image.Model,
	}
	if rep.APIKeyConfigured {
		return rep
	}
	if rep.AutoGenerateEnabled || rep.InlineEnabled {
		rep.Status = StatusError
		rep.Issues = append(rep.Issues, "Image generation is enabled but API key is not configured")
		return rep
	}
	rep.Status = StatusNotConfigured
	rep.Issues = append(rep.Issues, "Image generation API key not configured")
	return rep
}
