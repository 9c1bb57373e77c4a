package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/quill/internal/store"
)

// MockSettings implements store.SettingsStore over a map.
type MockSettings struct {
	mu     sync.RWMutex
	values map[string]string
	Err    error
}

var _ store.SettingsStore = (*MockSettings)(nil)

// NewMockSettings creates settings holding values.
func NewMockSettings(values map[string]string) *MockSettings {
	m := &MockSettings{values: make(map[string]string)}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

func (m *MockSettings) Get(_ context.Context, key string) (string, bool, error) {
	if m.Err != nil {
		return "", false, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MockSettings) Set(_ context.Context, key, value string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

func (m *MockSettings) Delete(_ context.Context, key string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MockSettings) All(_ context.Context) (map[string]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}
