package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/store"
)

// SeriesStore implements store.SeriesStore.
type SeriesStore struct {
	db store.DBTX
}

var _ store.SeriesStore = (*SeriesStore)(nil)

// NewSeriesStore creates a series store.
func NewSeriesStore(db store.DBTX) *SeriesStore {
	return &SeriesStore{db: db}
}

func (s *SeriesStore) Create(ctx context.Context, series *domain.Series) error {
	if strings.TrimSpace(series.Name) == "" {
		return fmt.Errorf("%w: series name cannot be empty", store.ErrInvalidEntity)
	}
	if series.Status == "" {
		series.Status = domain.SeriesStatusActive
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO series (name, description, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		series.Name, series.Description, string(series.Status),
	).Scan(&series.ID, &series.CreatedAt)
	if err != nil {
		return MapUniqueViolation(MapError(err), "series", nil)
	}
	return nil
}

func (s *SeriesStore) Get(ctx context.Context, id int64) (*domain.Series, error) {
	var series domain.Series
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, status, created_at FROM series WHERE id = $1`, id,
	).Scan(&series.ID, &series.Name, &series.Description, &status, &series.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrSeriesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get series: %w", MapError(err))
	}
	series.Status = domain.SeriesStatus(status)
	return &series, nil
}

func (s *SeriesStore) List(ctx context.Context) ([]*domain.Series, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, status, created_at FROM series ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	out := []*domain.Series{}
	for rows.Next() {
		var series domain.Series
		var status string
		if err := rows.Scan(&series.ID, &series.Name, &series.Description, &status, &series.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan series: %w", err)
		}
		series.Status = domain.SeriesStatus(status)
		out = append(out, &series)
	}
	return out, rows.Err()
}

// AppendDocument inserts the document at the next free position of the series.
func (s *SeriesStore) AppendDocument(ctx context.Context, seriesID, documentID int64) (int, error) {
	var position int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO series_documents (series_id, document_id, position)
		SELECT $1, $2, COALESCE(MAX(position), 0) + 1
		FROM series_documents
		WHERE series_id = $1
		RETURNING position`,
		seriesID, documentID,
	).Scan(&position)
	if err != nil {
		if IsForeignKeyViolation(err) {
			if constraintName(err) == "series_documents_document_id_fkey" {
				return 0, fmt.Errorf("%w: %v", store.ErrDocumentNotFound, err)
			}
			return 0, fmt.Errorf("%w: %v", store.ErrSeriesNotFound, err)
		}
		return 0, fmt.Errorf("failed to append to series: %w", MapError(err))
	}
	return position, nil
}

func (s *SeriesStore) Entries(ctx context.Context, seriesID int64) ([]domain.SeriesEntry, error) {
	if _, err := s.Get(ctx, seriesID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sd.series_id, sd.document_id, sd.position, d.title
		FROM series_documents sd
		JOIN documents d ON d.id = sd.document_id
		WHERE sd.series_id = $1
		ORDER BY sd.position`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to list series entries: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	entries := []domain.SeriesEntry{}
	for rows.Next() {
		var e domain.SeriesEntry
		if err := rows.Scan(&e.SeriesID, &e.DocumentID, &e.Position, &e.Title); err != nil {
			return nil, fmt.Errorf("failed to scan series entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
