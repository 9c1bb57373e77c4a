package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/store"
)

// MockTopicStore implements store.TopicStore in memory. RandomActive returns
// the first active topic so tests stay deterministic.
type MockTopicStore struct {
	mu     sync.Mutex
	topics []*domain.Topic
	nextID int64

	Err error
}

var _ store.TopicStore = (*MockTopicStore)(nil)

// NewMockTopicStore seeds the store with topics, assigning ids where missing.
func NewMockTopicStore(topics ...*domain.Topic) *MockTopicStore {
	m := &MockTopicStore{}
	for _, t := range topics {
		_ = m.Create(context.Background(), t)
	}
	return m
}

func (m *MockTopicStore) Get(_ context.Context, id int64) (*domain.Topic, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.topics {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrTopicNotFound
}

func (m *MockTopicStore) RandomActive(_ context.Context) (*domain.Topic, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.topics {
		if t.Active {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrTopicNotFound
}

func (m *MockTopicStore) Create(_ context.Context, topic *domain.Topic) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	if topic.ID == 0 {
		topic.ID = m.nextID
	} else if topic.ID > m.nextID {
		m.nextID = topic.ID
	}
	cp := *topic
	m.topics = append(m.topics, &cp)
	return nil
}

func (m *MockTopicStore) List(_ context.Context, activeOnly bool) ([]*domain.Topic, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Topic, 0, len(m.topics))
	for _, t := range m.topics {
		if activeOnly && !t.Active {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// MockSeriesStore implements store.SeriesStore in memory.
type MockSeriesStore struct {
	mu      sync.Mutex
	series  map[int64]*domain.Series
	entries map[int64][]domain.SeriesEntry
	nextID  int64

	// Titles supplies document titles for Entries, keyed by document id.
	Titles map[int64]string

	AppendErr error
}

var _ store.SeriesStore = (*MockSeriesStore)(nil)

// NewMockSeriesStore creates an empty series store.
func NewMockSeriesStore() *MockSeriesStore {
	return &MockSeriesStore{
		series:  make(map[int64]*domain.Series),
		entries: make(map[int64][]domain.SeriesEntry),
	}
}

func (m *MockSeriesStore) Create(_ context.Context, s *domain.Series) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	if s.Status == "" {
		s.Status = domain.SeriesStatusActive
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	cp := *s
	m.series[s.ID] = &cp
	return nil
}

func (m *MockSeriesStore) Get(_ context.Context, id int64) (*domain.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.series[id]
	if !ok {
		return nil, store.ErrSeriesNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSeriesStore) List(_ context.Context) ([]*domain.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Series, 0, len(m.series))
	for _, s := range m.series {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockSeriesStore) AppendDocument(_ context.Context, seriesID, documentID int64) (int, error) {
	if m.AppendErr != nil {
		return 0, m.AppendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.series[seriesID]; !ok {
		return 0, store.ErrSeriesNotFound
	}
	pos := len(m.entries[seriesID]) + 1
	m.entries[seriesID] = append(m.entries[seriesID], domain.SeriesEntry{
		SeriesID:   seriesID,
		DocumentID: documentID,
		Position:   pos,
	})
	return pos, nil
}

func (m *MockSeriesStore) Entries(_ context.Context, seriesID int64) ([]domain.SeriesEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.series[seriesID]; !ok {
		return nil, store.ErrSeriesNotFound
	}
	out := append([]domain.SeriesEntry(nil), m.entries[seriesID]...)
	for i := range out {
		if title, ok := m.Titles[out[i].DocumentID]; ok {
			out[i].Title = title
		}
	}
	return out, nil
}

// MockContentRepository implements store.ContentRepository in memory.
type MockContentRepository struct {
	mu     sync.Mutex
	docs   map[int64]*domain.Document
	nextID int64

	CreateErr error
	UpdateErr error
	MetaErr   error
}

var _ store.ContentRepository = (*MockContentRepository)(nil)

// NewMockContentRepository creates an empty repository.
func NewMockContentRepository() *MockContentRepository {
	return &MockContentRepository{docs: make(map[int64]*domain.Document)}
}

func (m *MockContentRepository) Create(_ context.Context, doc *domain.Document) (int64, error) {
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	if err := doc.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	cp := *doc
	cp.ID = m.nextID
	cp.Meta = copyMeta(doc.Meta)
	now := time.Now().UTC()
	cp.CreatedAt, cp.UpdatedAt = now, now
	m.docs[cp.ID] = &cp
	return cp.ID, nil
}

func (m *MockContentRepository) Update(_ context.Context, doc *domain.Document) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.docs[doc.ID]
	if !ok {
		return store.ErrDocumentNotFound
	}
	existing.Title = doc.Title
	existing.Body = doc.Body
	existing.Excerpt = doc.Excerpt
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockContentRepository) SetStatus(_ context.Context, id int64, status domain.DocumentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return store.ErrDocumentNotFound
	}
	doc.Status = status
	return nil
}

func (m *MockContentRepository) Get(_ context.Context, id int64) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, store.ErrDocumentNotFound
	}
	cp := *doc
	cp.Meta = copyMeta(doc.Meta)
	return &cp, nil
}

func (m *MockContentRepository) SetMeta(_ context.Context, id int64, key, value string) error {
	if m.MetaErr != nil {
		return m.MetaErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return store.ErrDocumentNotFound
	}
	if doc.Meta == nil {
		doc.Meta = make(map[string]string)
	}
	doc.Meta[key] = value
	return nil
}

func (m *MockContentRepository) SetFeaturedImage(_ context.Context, id int64, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return store.ErrDocumentNotFound
	}
	doc.FeaturedImageURL = url
	return nil
}

// Count returns the number of stored documents.
func (m *MockContentRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func copyMeta(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// MockUnitOfWork implements store.UnitOfWork by calling fn with the wrapped
// stores. Nothing is rolled back on error.
type MockUnitOfWork struct {
	Docs   store.ContentRepository
	Series store.SeriesStore
	Err    error
}

var _ store.UnitOfWork = (*MockUnitOfWork)(nil)

func (m *MockUnitOfWork) Within(
	ctx context.Context,
	fn func(ctx context.Context, docs store.ContentRepository, series store.SeriesStore) error,
) error {
	if m.Err != nil {
		return m.Err
	}
	return fn(ctx, m.Docs, m.Series)
}
