package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/quill/internal/api/shared"
	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/store"
	"github.com/phrazzld/quill/internal/task"
)

const (
	defaultTaskLimit = 20
	maxTaskLimit     = 100
)

// TaskQueue is the queue surface used by TaskHandler.
type TaskQueue interface {
	Enqueue(ctx context.Context, payload domain.Payload) (int64, error)
	Cleanup(ctx context.Context, days int) (int64, error)
}

// QueueRunner processes one queued task on demand.
type QueueRunner interface {
	RunOnce(ctx context.Context) (task.Outcome, error)
}

// TaskHandler serves the queue endpoints.
type TaskHandler struct {
	queue         TaskQueue
	runner        QueueRunner
	tasks         store.TaskStore
	docs          store.ContentRepository
	retentionDays int
	logger        *slog.Logger
}

// NewTaskHandler creates a TaskHandler. retentionDays is used by cleanup
// requests that do not name a number of days.
func NewTaskHandler(
	queue TaskQueue,
	runner QueueRunner,
	tasks store.TaskStore,
	docs store.ContentRepository,
	retentionDays int,
	logger *slog.Logger,
) *TaskHandler {
	return &TaskHandler{
		queue:         queue,
		runner:        runner,
		tasks:         tasks,
		docs:          docs,
		retentionDays: retentionDays,
		logger:        logger.With("component", "task_handler"),
	}
}

// CreateTask handles POST /api/tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !decodeAndValidate(w, r, &req, true) {
		return
	}

	payload := domain.ManualPayload{TopicID: req.TopicID, TopicText: strings.TrimSpace(req.Topic)}
	h.enqueue(w, r, payload)
}

// RewriteDocument handles POST /api/documents/{id}/rewrite.
func (h *TaskHandler) RewriteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req RewriteRequest
	if !decodeAndValidate(w, r, &req, true) {
		return
	}

	if _, err := h.docs.Get(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to load document")
		return
	}

	h.enqueue(w, r, domain.RewritePayload{DocumentID: id, TopicText: strings.TrimSpace(req.Topic)})
}

func (h *TaskHandler) enqueue(w http.ResponseWriter, r *http.Request, payload domain.Payload) {
	id, err := h.queue.Enqueue(r.Context(), payload)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to enqueue task")
		return
	}

	subject, _ := shared.GetSubject(r.Context())
	h.logger.DebugContext(r.Context(), "enqueue request accepted",
		"task_id", id,
		"trigger", payload.Kind(),
		"subject", subject)

	shared.RespondWithJSON(w, r, http.StatusAccepted, EnqueueResponse{
		TaskID: id,
		Status: string(domain.TaskStatusPending),
	})
}

// ListTasks handles GET /api/tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultTaskLimit, 1, maxTaskLimit)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit")
		return
	}

	tasks, err := h.tasks.Recent(r.Context(), limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}

	resp := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, taskToResponse(t))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetTask handles GET /api/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	t, err := h.tasks.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(t))
}

// Stats handles GET /api/queue/stats.
func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tasks.Stats(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get queue statistics")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, StatsResponse{QueueStats: stats, Total: stats.Total()})
}

// RunQueue handles POST /api/queue/run by processing one task in the
// request.
func (h *TaskHandler) RunQueue(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.runner.RunOnce(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to run queue")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, outcome)
}

// Cleanup handles POST /api/queue/cleanup.
func (h *TaskHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	if !decodeAndValidate(w, r, &req, true) {
		return
	}

	days := req.Days
	if days == 0 {
		days = h.retentionDays
	}

	deleted, err := h.queue.Cleanup(r.Context(), days)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to clean up tasks")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, CleanupResponse{Deleted: deleted, Days: days})
}
