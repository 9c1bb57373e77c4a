package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/phrazzld/quill/internal/api/shared"
	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/series"
	"github.com/phrazzld/quill/internal/store"
)

// SeriesService is the series surface used by SeriesHandler.
type SeriesService interface {
	Create(ctx context.Context, name, description string) (*domain.Series, error)
	Suggest(ctx context.Context, seriesID int64, n int) ([]string, error)
	Accept(ctx context.Context, seriesID int64, topic string) (int64, error)
}

var _ SeriesService = (*series.Service)(nil)

// SeriesHandler serves the series endpoints.
type SeriesHandler struct {
	service SeriesService
	series  store.SeriesStore
	logger  *slog.Logger
}

// NewSeriesHandler creates a SeriesHandler.
func NewSeriesHandler(service SeriesService, seriesStore store.SeriesStore, logger *slog.Logger) *SeriesHandler {
	return &SeriesHandler{
		service: service,
		series:  seriesStore,
		logger:  logger.With("component", "series_handler"),
	}
}

// CreateSeries handles POST /api/series.
func (h *SeriesHandler) CreateSeries(w http.ResponseWriter, r *http.Request) {
	var req CreateSeriesRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	s, err := h.service.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create series")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, s)
}

// ListSeries handles GET /api/series.
func (h *SeriesHandler) ListSeries(w http.ResponseWriter, r *http.Request) {
	list, err := h.series.List(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list series")
		return
	}
	if list == nil {
		list = []*domain.Series{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, list)
}

// GetSeries handles GET /api/series/{id}.
func (h *SeriesHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	s, err := h.series.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get series")
		return
	}
	entries, err := h.series.Entries(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get series entries")
		return
	}
	if entries == nil {
		entries = []domain.SeriesEntry{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, SeriesDetailResponse{Series: s, Entries: entries})
}

// Suggest handles POST /api/series/{id}/suggestions.
func (h *SeriesHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req SuggestRequest
	if !decodeAndValidate(w, r, &req, true) {
		return
	}

	suggestions, err := h.service.Suggest(r.Context(), id, req.Count)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to suggest topics")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, SuggestResponse{Suggestions: suggestions})
}

// Accept handles POST /api/series/{id}/topics and queues the chosen topic
// as the next entry of the series.
func (h *SeriesHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req AcceptSuggestionRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	if _, err := h.series.Get(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to get series")
		return
	}

	taskID, err := h.service.Accept(r.Context(), id, req.Topic)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to enqueue series task")
		return
	}

	h.logger.InfoContext(r.Context(), "series topic accepted", "series_id", id, "task_id", taskID)
	shared.RespondWithJSON(w, r, http.StatusAccepted, EnqueueResponse{
		TaskID: taskID,
		Status: string(domain.TaskStatusPending),
	})
}
