// Package blob implements store.BlobStore on a local directory.
//
// Files are content addressed: the name is the caller's hint followed by a
// prefix of the SHA-256 of the data, so uploading the same bytes twice
// yields the same URL and a single file.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/phrazzld/quill/internal/store"
)

// ErrEmptyBlob is returned when Upload receives no data.
var ErrEmptyBlob = errors.New("blob data cannot be empty")

const hashPrefixLen = 16

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// LocalStore writes blobs to dir and serves them under baseURL.
type LocalStore struct {
	dir     string
	baseURL string
	logger  *slog.Logger
}

var _ store.BlobStore = (*LocalStore)(nil)

// NewLocalStore creates dir if needed and returns a store rooted there.
func NewLocalStore(dir, baseURL string, logger *slog.Logger) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("blob directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With("component", "blob_store"),
	}, nil
}

// Dir returns the directory blobs are written to.
func (s *LocalStore) Dir() string { return s.dir }

// Upload stores data and returns its URL.
func (s *LocalStore) Upload(ctx context.Context, data []byte, filenameHint, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyBlob
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := FileName(data, filenameHint, mimeType)
	path := filepath.Join(s.dir, name)

	if _, err := os.Stat(path); err == nil {
		s.logger.DebugContext(ctx, "blob already stored", "name", name)
		return s.url(name), nil
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create blob: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to store blob: %w", err)
	}

	s.logger.InfoContext(ctx, "blob stored", "name", name, "bytes", len(data), "mime_type", mimeType)
	return s.url(name), nil
}

func (s *LocalStore) url(name string) string {
	return s.baseURL + "/" + name
}

// FileName derives the stored file name for data.
func FileName(data []byte, hint, mimeType string) string {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])[:hashPrefixLen]

	ext, ok := extensions[strings.ToLower(mimeType)]
	if !ok {
		ext = ".bin"
	}

	hint = sanitize(hint)
	if hint == "" {
		return hash + ext
	}
	return hint + "-" + hash + ext
}

func sanitize(hint string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(hint) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > 60 {
		out = out[:60]
	}
	return out
}
