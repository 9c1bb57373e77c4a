package domain

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus represents the position of a generation task in its lifecycle.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// AllTaskStatuses lists every status in display order.
var AllTaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusProcessing,
	TaskStatusCompleted,
	TaskStatusFailed,
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible from s.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TriggerKind identifies the origin of a generation request.
type TriggerKind string

// Supported trigger kinds
const (
	TriggerManual    TriggerKind = "manual"
	TriggerScheduled TriggerKind = "scheduled"
	TriggerSeries    TriggerKind = "series"
	TriggerRewrite   TriggerKind = "rewrite"
)

// ParseTriggerKind converts a stored string back into a TriggerKind.
func ParseTriggerKind(s string) (TriggerKind, error) {
	switch k := TriggerKind(s); k {
	case TriggerManual, TriggerScheduled, TriggerSeries, TriggerRewrite:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTriggerKind, s)
	}
}

// Payload is the closed set of per-kind task arguments. Each trigger kind
// carries exactly the fields it needs.
type Payload interface {
	Kind() TriggerKind
	Validate() error
	isPayload()
}

// ManualPayload requests a new document for a stored topic, an inline topic
// text, or (when both are empty) a randomly chosen active topic.
type ManualPayload struct {
	TopicID   int64
	TopicText string
}

func (ManualPayload) Kind() TriggerKind { return TriggerManual }
func (ManualPayload) isPayload()        {}

// Validate rejects payloads that reference a stored topic and an inline text at once.
func (p ManualPayload) Validate() error {
	if p.TopicID < 0 {
		return fmt.Errorf("%w: negative topic id", ErrInvalidPayload)
	}
	if p.TopicID > 0 && strings.TrimSpace(p.TopicText) != "" {
		return fmt.Errorf("%w: manual task takes a topic id or a topic text, not both", ErrInvalidPayload)
	}
	return nil
}

// ScheduledPayload is produced by the recurring schedule. The topic is chosen
// at execution time from the active topics.
type ScheduledPayload struct{}

func (ScheduledPayload) Kind() TriggerKind { return TriggerScheduled }
func (ScheduledPayload) Validate() error   { return nil }
func (ScheduledPayload) isPayload()        {}

// SeriesPayload creates the next document of a series from an accepted suggestion.
type SeriesPayload struct {
	SeriesID  int64
	TopicText string
}

func (SeriesPayload) Kind() TriggerKind { return TriggerSeries }
func (SeriesPayload) isPayload()        {}

// Validate requires both the series and the topic text.
func (p SeriesPayload) Validate() error {
	if p.SeriesID <= 0 {
		return fmt.Errorf("%w: series task requires a series id", ErrInvalidPayload)
	}
	if strings.TrimSpace(p.TopicText) == "" {
		return fmt.Errorf("%w: series task requires a topic text", ErrInvalidPayload)
	}
	return nil
}

// RewritePayload replaces the content of an existing document. An empty
// TopicText means the document's current title is used as the topic.
type RewritePayload struct {
	DocumentID int64
	TopicText  string
}

func (RewritePayload) Kind() TriggerKind { return TriggerRewrite }
func (RewritePayload) isPayload()        {}

// Validate requires a target document.
func (p RewritePayload) Validate() error {
	if p.DocumentID <= 0 {
		return fmt.Errorf("%w: rewrite task requires a document id", ErrInvalidPayload)
	}
	return nil
}

// Task is one persisted generation request.
type Task struct {
	ID          int64
	Status      TaskStatus
	Payload     Payload
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	// DocumentID is set only once the task has completed.
	DocumentID *int64
	// TopicLabel is a human readable topic for listings; it is not used for execution.
	TopicLabel string
}

// Trigger returns the trigger kind carried by the payload.
func (t *Task) Trigger() TriggerKind {
	if t.Payload == nil {
		return ""
	}
	return t.Payload.Kind()
}

// Validate checks the task invariants that do not depend on storage.
func (t *Task) Validate() error {
	if !t.Status.Valid() {
		return ErrInvalidTaskStatus
	}
	if t.Payload == nil {
		return fmt.Errorf("%w: missing payload", ErrInvalidPayload)
	}
	if err := t.Payload.Validate(); err != nil {
		return err
	}
	if t.Attempts < 0 {
		return fmt.Errorf("%w: negative attempt count", ErrValidation)
	}
	if (t.Status == TaskStatusCompleted) != (t.DocumentID != nil) {
		return fmt.Errorf("%w: document reference must be set exactly when completed", ErrValidation)
	}
	return nil
}

// QueueStats holds task counts per status.
type QueueStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Total returns the number of tasks across every status.
func (s QueueStats) Total() int {
	return s.Pending + s.Processing + s.Completed + s.Failed
}

// Add increments the counter for status by n. Unknown statuses are ignored.
func (s *QueueStats) Add(status TaskStatus, n int) {
	switch status {
	case TaskStatusPending:
		s.Pending += n
	case TaskStatusProcessing:
		s.Processing += n
	case TaskStatusCompleted:
		s.Completed += n
	case TaskStatusFailed:
		s.Failed += n
	}
}
