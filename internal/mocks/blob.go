package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/phrazzld/quill/internal/store"
)

// Upload records one BlobStore.Upload call.
type Upload struct {
	Name     string
	MIMEType string
	Size     int
}

// MockBlobStore implements store.BlobStore in memory.
type MockBlobStore struct {
	UploadFn func(ctx context.Context, data []byte, name, mimeType string) (string, error)

	mu      sync.Mutex
	uploads []Upload
}

var _ store.BlobStore = (*MockBlobStore)(nil)

// Upload returns mem://<n>/<name>.
func (m *MockBlobStore) Upload(ctx context.Context, data []byte, name, mimeType string) (string, error) {
	if m.UploadFn != nil {
		return m.UploadFn(ctx, data, name, mimeType)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, Upload{Name: name, MIMEType: mimeType, Size: len(data)})
	return fmt.Sprintf("mem://%d/%s.jpg", len(m.uploads), name), nil
}

// Uploads returns the recorded uploads.
func (m *MockBlobStore) Uploads() []Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Upload(nil), m.uploads...)
}
