package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/store"
)

// MockTaskStore implements store.TaskStore in memory with the same transition
// rules as the PostgreSQL store.
type MockTaskStore struct {
	mu     sync.Mutex
	tasks  map[int64]*domain.Task
	nextID int64

	// Now supplies creation timestamps. Defaults to time.Now.
	Now func() time.Time

	EnqueueErr   error
	NextErr      error
	StatsErr     error
	CompletedErr error
	FailedErr    error
}

var _ store.TaskStore = (*MockTaskStore)(nil)

// NewMockTaskStore creates an empty queue.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{tasks: make(map[int64]*domain.Task)}
}

func (m *MockTaskStore) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

func (m *MockTaskStore) Enqueue(_ context.Context, payload domain.Payload) (int64, error) {
	if m.EnqueueErr != nil {
		return 0, m.EnqueueErr
	}
	if payload == nil {
		return 0, fmt.Errorf("%w: missing payload", domain.ErrInvalidPayload)
	}
	if err := payload.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.tasks[m.nextID] = &domain.Task{
		ID:        m.nextID,
		Status:    domain.TaskStatusPending,
		Payload:   payload,
		CreatedAt: m.now(),
	}
	return m.nextID, nil
}

// Put stores a task as-is, for tests that need a specific starting state.
func (m *MockTaskStore) Put(task *domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task.ID == 0 {
		m.nextID++
		task.ID = m.nextID
	} else if task.ID > m.nextID {
		m.nextID = task.ID
	}
	cp := *task
	m.tasks[task.ID] = &cp
}

func (m *MockTaskStore) Get(_ context.Context, id int64) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockTaskStore) NextEligible(_ context.Context, maxAttempts int) (*domain.Task, error) {
	if m.NextErr != nil {
		return nil, m.NextErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *domain.Task
	for _, t := range m.tasks {
		if t.Status != domain.TaskStatusPending || t.Attempts >= maxAttempts {
			continue
		}
		if best == nil || t.CreatedAt.Before(best.CreatedAt) ||
			(t.CreatedAt.Equal(best.CreatedAt) && t.ID < best.ID) {
			best = t
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (m *MockTaskStore) MarkProcessing(ctx context.Context, id int64, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return false, store.ErrTaskNotFound
	}
	if t.Status != domain.TaskStatusPending {
		return false, nil
	}
	t.Status = domain.TaskStatusProcessing
	started := now
	t.StartedAt = &started
	return true, nil
}

func (m *MockTaskStore) MarkCompleted(ctx context.Context, id int64, documentID int64, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.CompletedErr != nil {
		return m.CompletedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	switch t.Status {
	case domain.TaskStatusCompleted:
		return nil
	case domain.TaskStatusProcessing:
	default:
		return fmt.Errorf("%w: cannot complete %s task", domain.ErrInvalidTaskStatus, t.Status)
	}
	t.Status = domain.TaskStatusCompleted
	doc := documentID
	t.DocumentID = &doc
	done := now
	t.CompletedAt = &done
	t.LastError = ""
	return nil
}

func (m *MockTaskStore) MarkFailed(
	ctx context.Context,
	id int64,
	reason string,
	maxAttempts int,
	now time.Time,
) (store.FailureOutcome, error) {
	if err := ctx.Err(); err != nil {
		return store.FailureOutcome{}, err
	}
	if m.FailedErr != nil {
		return store.FailureOutcome{}, m.FailedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return store.FailureOutcome{}, store.ErrTaskNotFound
	}
	if t.Status != domain.TaskStatusProcessing {
		return store.FailureOutcome{Status: t.Status, Attempts: t.Attempts}, nil
	}
	t.Attempts++
	t.LastError = reason
	if t.Attempts >= maxAttempts {
		t.Status = domain.TaskStatusFailed
		done := now
		t.CompletedAt = &done
	} else {
		t.Status = domain.TaskStatusPending
	}
	return store.FailureOutcome{
		Status:    t.Status,
		Attempts:  t.Attempts,
		WillRetry: t.Status == domain.TaskStatusPending,
	}, nil
}

func (m *MockTaskStore) Stats(_ context.Context) (domain.QueueStats, error) {
	if m.StatsErr != nil {
		return domain.QueueStats{}, m.StatsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats domain.QueueStats
	for _, t := range m.tasks {
		stats.Add(t.Status, 1)
	}
	return stats, nil
}

func (m *MockTaskStore) Recent(_ context.Context, limit int) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockTaskStore) CountStuck(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if t.Status == domain.TaskStatusProcessing && t.StartedAt != nil && t.StartedAt.Before(olderThan) {
			n++
		}
	}
	return n, nil
}

func (m *MockTaskStore) Cleanup(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tasks {
		if t.Status.Terminal() && t.CompletedAt != nil && t.CompletedAt.Before(before) {
			delete(m.tasks, id)
			n++
		}
	}
	return n, nil
}
