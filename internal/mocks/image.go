package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/quill/internal/generation"
)

// MockImageGenerator implements generation.ImageGenerator for testing.
type MockImageGenerator struct {
	GenerateImageFn func(ctx context.Context, prompt string) (*generation.Image, error)

	mu      sync.Mutex
	prompts []string
}

var _ generation.ImageGenerator = (*MockImageGenerator)(nil)

// GenerateImage returns a tiny JPEG header unless GenerateImageFn is set.
func (m *MockImageGenerator) GenerateImage(ctx context.Context, prompt string) (*generation.Image, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateImageFn != nil {
		return m.GenerateImageFn(ctx, prompt)
	}
	return &generation.Image{Data: []byte{0xff, 0xd8, 0xff}, MIMEType: "image/jpeg"}, nil
}

// Prompts returns the prompts received so far.
func (m *MockImageGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
