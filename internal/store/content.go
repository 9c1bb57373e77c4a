package store

import (
	"context"

	"github.com/phrazzld/quill/internal/domain"
)

// TopicStore provides read access to configured topics.
type TopicStore interface {
	Get(ctx context.Context, id int64) (*domain.Topic, error)
	// RandomActive returns one active topic chosen at random, or ErrTopicNotFound.
	RandomActive(ctx context.Context) (*domain.Topic, error)
	Create(ctx context.Context, topic *domain.Topic) error
	List(ctx context.Context, activeOnly bool) ([]*domain.Topic, error)
}

// SeriesStore manages series and their ordered documents.
type SeriesStore interface {
	Create(ctx context.Context, series *domain.Series) error
	Get(ctx context.Context, id int64) (*domain.Series, error)
	List(ctx context.Context) ([]*domain.Series, error)
	// AppendDocument places documentID after the last entry of the series.
	AppendDocument(ctx context.Context, seriesID, documentID int64) (int, error)
	// Entries returns the series documents ordered by position.
	Entries(ctx context.Context, seriesID int64) ([]domain.SeriesEntry, error)
}

// ContentRepository persists generated documents.
type ContentRepository interface {
	Create(ctx context.Context, doc *domain.Document) (int64, error)
	// Update replaces title, body and excerpt of an existing document.
	Update(ctx context.Context, doc *domain.Document) error
	SetStatus(ctx context.Context, id int64, status domain.DocumentStatus) error
	Get(ctx context.Context, id int64) (*domain.Document, error)
	SetMeta(ctx context.Context, id int64, key, value string) error
	SetFeaturedImage(ctx context.Context, id int64, url string) error
}

// BlobStore stores binary assets and returns a retrievable URL.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, filenameHint, mimeType string) (string, error)
}

// SettingsReader reads operator settings. Found is false when the key is unset.
type SettingsReader interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
}

// UnitOfWork runs fn with repositories bound to a single transaction. The
// work commits only when fn returns nil.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(ctx context.Context, docs ContentRepository, series SeriesStore) error) error
}

// SettingsStore reads and writes operator settings.
type SettingsStore interface {
	SettingsReader
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	All(ctx context.Context) (map[string]string, error)
}
