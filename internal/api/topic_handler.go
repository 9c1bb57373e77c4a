package api

import (
	"net/http"
	"strconv"

	"github.com/phrazzld/quill/internal/api/shared"
	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/store"
)

// TopicHandler serves the topic pool endpoints.
type TopicHandler struct {
	topics store.TopicStore
}

// NewTopicHandler creates a TopicHandler.
func NewTopicHandler(topics store.TopicStore) *TopicHandler {
	return &TopicHandler{topics: topics}
}

// ListTopics handles GET /api/topics. ?active=true restricts the list to
// active topics.
func (h *TopicHandler) ListTopics(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid active filter")
			return
		}
		activeOnly = v
	}

	topics, err := h.topics.List(r.Context(), activeOnly)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list topics")
		return
	}
	if topics == nil {
		topics = []*domain.Topic{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, topics)
}

// CreateTopic handles POST /api/topics.
func (h *TopicHandler) CreateTopic(w http.ResponseWriter, r *http.Request) {
	var req CreateTopicRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	topic := req.toDomain()
	if err := h.topics.Create(r.Context(), topic); err != nil {
		HandleAPIError(w, r, err, "Failed to create topic")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, topic)
}
