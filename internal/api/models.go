package api

import (
	"strings"
	"time"

	"github.com/phrazzld/quill/internal/domain"
)

// CreateTaskRequest enqueues a manual generation. TopicID and Topic are
// both optional; without either a random active topic is used.
type CreateTaskRequest struct {
	TopicID int64  `json:"topic_id,omitempty" validate:"gte=0"`
	Topic   string `json:"topic,omitempty"    validate:"max=500"`
}

// RewriteRequest enqueues the regeneration of an existing document.
type RewriteRequest struct {
	Topic string `json:"topic,omitempty" validate:"max=500"`
}

// EnqueueResponse is returned for every accepted task.
type EnqueueResponse struct {
	TaskID int64  `json:"task_id"`
	Status string `json:"status"`
}

// TaskResponse is the wire form of a queued task.
type TaskResponse struct {
	ID          int64      `json:"id"`
	Status      string     `json:"status"`
	Trigger     string     `json:"trigger"`
	Topic       string     `json:"topic,omitempty"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	DocumentID  *int64     `json:"document_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Status:      string(t.Status),
		Trigger:     string(t.Trigger()),
		Topic:       t.TopicLabel,
		Attempts:    t.Attempts,
		LastError:   t.LastError,
		DocumentID:  t.DocumentID,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}

// StatsResponse reports task counts per status.
type StatsResponse struct {
	domain.QueueStats
	Total int `json:"total"`
}

// CleanupRequest deletes finished tasks older than Days. Zero uses the
// configured retention.
type CleanupRequest struct {
	Days int `json:"days,omitempty" validate:"gte=0"`
}

// CleanupResponse reports how many tasks were removed.
type CleanupResponse struct {
	Deleted int64 `json:"deleted"`
	Days    int   `json:"days"`
}

// CreateTopicRequest adds a topic to the pool.
type CreateTopicRequest struct {
	Text     string   `json:"text"               validate:"required,max=500"`
	Keywords []string `json:"keywords,omitempty"`
	Hashtags []string `json:"hashtags,omitempty"`
	Active   *bool    `json:"active,omitempty"`
}

func (r CreateTopicRequest) toDomain() *domain.Topic {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return &domain.Topic{
		Text:     strings.TrimSpace(r.Text),
		Keywords: r.Keywords,
		Hashtags: domain.NormalizeHashtags(r.Hashtags),
		Active:   active,
	}
}

// CreateSeriesRequest creates a series.
type CreateSeriesRequest struct {
	Name        string `json:"name"                  validate:"required,max=200"`
	Description string `json:"description,omitempty" validate:"max=2000"`
}

// SeriesDetailResponse is a series with its ordered entries.
type SeriesDetailResponse struct {
	*domain.Series
	Entries []domain.SeriesEntry `json:"entries"`
}

// SuggestRequest asks for follow-up topics. Zero uses the default count.
type SuggestRequest struct {
	Count int `json:"count,omitempty" validate:"gte=0,lte=10"`
}

// SuggestResponse lists suggested follow-up topics.
type SuggestResponse struct {
	Suggestions []string `json:"suggestions"`
}

// AcceptSuggestionRequest enqueues the next entry of a series.
type AcceptSuggestionRequest struct {
	Topic string `json:"topic" validate:"required,max=500"`
}

// SettingsResponse lists the overridable keys and the stored values, with
// secrets masked.
type SettingsResponse struct {
	Keys     []string          `json:"keys"`
	Settings map[string]string `json:"settings"`
}

// SetSettingRequest stores one override.
type SetSettingRequest struct {
	Value string `json:"value"`
}
