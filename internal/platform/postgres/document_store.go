package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/store"
)

// DocumentStore implements store.ContentRepository on the documents and
// document_meta tables.
type DocumentStore struct {
	db store.DBTX
}

var _ store.ContentRepository = (*DocumentStore)(nil)

// NewDocumentStore creates a document store.
func NewDocumentStore(db store.DBTX) *DocumentStore {
	return &DocumentStore{db: db}
}

// Create inserts doc and its meta entries and returns the new id.
func (s *DocumentStore) Create(ctx context.Context, doc *domain.Document) (int64, error) {
	if err := doc.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (title, body, excerpt, status, featured_image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id`,
		doc.Title, doc.Body, doc.Excerpt, string(doc.Status), doc.FeaturedImageURL, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create document: %v", store.ErrPersistence, MapError(err))
	}

	for key, value := range doc.Meta {
		if err := s.SetMeta(ctx, id, key, value); err != nil {
			return 0, err
		}
	}

	doc.ID = id
	doc.CreatedAt, doc.UpdatedAt = now, now
	return id, nil
}

// Update replaces title, body and excerpt.
func (s *DocumentStore) Update(ctx context.Context, doc *domain.Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents SET title = $2, body = $3, excerpt = $4, updated_at = $5
		WHERE id = $1`,
		doc.ID, doc.Title, doc.Body, doc.Excerpt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: failed to update document: %v", store.ErrPersistence, MapError(err))
	}
	return CheckRowsAffected(result, store.ErrDocumentNotFound)
}

func (s *DocumentStore) SetStatus(ctx context.Context, id int64, status domain.DocumentStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: failed to set document status: %v", store.ErrPersistence, MapError(err))
	}
	return CheckRowsAffected(result, store.ErrDocumentNotFound)
}

func (s *DocumentStore) SetFeaturedImage(ctx context.Context, id int64, url string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET featured_image_url = $2, updated_at = $3 WHERE id = $1`,
		id, url, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: failed to set featured image: %v", store.ErrPersistence, MapError(err))
	}
	return CheckRowsAffected(result, store.ErrDocumentNotFound)
}

// SetMeta inserts or replaces one meta entry.
func (s *DocumentStore) SetMeta(ctx context.Context, id int64, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_meta (document_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (document_id, key) DO UPDATE SET value = EXCLUDED.value`,
		id, key, value)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: %v", store.ErrDocumentNotFound, err)
		}
		return fmt.Errorf("%w: failed to set document meta: %v", store.ErrPersistence, MapError(err))
	}
	return nil
}

// Get returns a document with its meta entries.
func (s *DocumentStore) Get(ctx context.Context, id int64) (*domain.Document, error) {
	var doc domain.Document
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, body, excerpt, status, featured_image_url, created_at, updated_at
		FROM documents WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.Title, &doc.Body, &doc.Excerpt, &status,
		&doc.FeaturedImageURL, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", MapError(err))
	}
	doc.Status = domain.DocumentStatus(status)

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM document_meta WHERE document_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get document meta: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	doc.Meta = make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan document meta: %w", err)
		}
		doc.Meta[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document meta: %w", err)
	}
	return &doc, nil
}
