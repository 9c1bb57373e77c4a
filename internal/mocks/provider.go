package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/quill/internal/generation"
)

// MockProvider implements generation.Provider for testing.
type MockProvider struct {
	NameValue string
	Cfg       generation.ProviderConfig

	// GenerateFn allows test cases to mock the Generate behavior
	GenerateFn func(ctx context.Context, topic string, keywords, hashtags []string, opts generation.Options) (string, error)
	// CompleteFn allows test cases to mock the Complete behavior
	CompleteFn func(ctx context.Context, prompt string) (string, error)

	// Default response values
	Output string
	Err    error

	mu            sync.Mutex
	generateCalls []GenerateCall
	prompts       []string
}

// GenerateCall records the arguments of one Generate call.
type GenerateCall struct {
	Topic    string
	Keywords []string
	Hashtags []string
	Options  generation.Options
}

var _ generation.Provider = (*MockProvider)(nil)

func (m *MockProvider) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *MockProvider) Config() generation.ProviderConfig { return m.Cfg }

func (m *MockProvider) Generate(
	ctx context.Context,
	topic string,
	keywords, hashtags []string,
	opts generation.Options,
) (string, error) {
	m.mu.Lock()
	m.generateCalls = append(m.generateCalls, GenerateCall{topic, keywords, hashtags, opts})
	m.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, topic, keywords, hashtags, opts)
	}
	return m.Output, m.Err
}

func (m *MockProvider) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, prompt)
	}
	return m.Output, m.Err
}

// GenerateCalls returns a copy of the recorded Generate calls.
func (m *MockProvider) GenerateCalls() []GenerateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GenerateCall(nil), m.generateCalls...)
}

// Prompts returns a copy of the prompts passed to Complete.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
