package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/phrazzld/quill/internal/domain"
)

// payloadRecord is the JSONB shape of a task payload. Only the fields of the
// payload's own kind are set.
type payloadRecord struct {
	TopicID    int64  `json:"topic_id,omitempty"`
	TopicText  string `json:"topic_text,omitempty"`
	SeriesID   int64  `json:"series_id,omitempty"`
	DocumentID int64  `json:"document_id,omitempty"`
}

// encodePayload returns the stored trigger kind, JSON payload and listing label.
func encodePayload(p domain.Payload) (domain.TriggerKind, []byte, string, error) {
	var rec payloadRecord
	var label string

	switch v := p.(type) {
	case domain.ManualPayload:
		rec = payloadRecord{TopicID: v.TopicID, TopicText: v.TopicText}
		switch {
		case v.TopicText != "":
			label = v.TopicText
		case v.TopicID > 0:
			label = fmt.Sprintf("topic #%d", v.TopicID)
		}
	case domain.ScheduledPayload:
	case domain.SeriesPayload:
		rec = payloadRecord{SeriesID: v.SeriesID, TopicText: v.TopicText}
		label = v.TopicText
	case domain.RewritePayload:
		rec = payloadRecord{DocumentID: v.DocumentID, TopicText: v.TopicText}
		label = v.TopicText
		if label == "" {
			label = fmt.Sprintf("document #%d", v.DocumentID)
		}
	default:
		return "", nil, "", fmt.Errorf("%w: unsupported payload %T", domain.ErrInvalidPayload, p)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", nil, "", fmt.Errorf("failed to encode payload: %w", err)
	}
	return p.Kind(), data, label, nil
}

// decodePayload rebuilds the typed payload of a stored task.
func decodePayload(kind string, data []byte) (domain.Payload, error) {
	k, err := domain.ParseTriggerKind(kind)
	if err != nil {
		return nil, err
	}

	var rec payloadRecord
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
	}

	switch k {
	case domain.TriggerManual:
		return domain.ManualPayload{TopicID: rec.TopicID, TopicText: rec.TopicText}, nil
	case domain.TriggerScheduled:
		return domain.ScheduledPayload{}, nil
	case domain.TriggerSeries:
		return domain.SeriesPayload{SeriesID: rec.SeriesID, TopicText: rec.TopicText}, nil
	default:
		return domain.RewritePayload{DocumentID: rec.DocumentID, TopicText: rec.TopicText}, nil
	}
}
