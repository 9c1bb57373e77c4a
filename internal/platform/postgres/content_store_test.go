package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/quill/internal/domain"
	"github.com/phrazzld/quill/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLMock(t *testing.T) (store.DBTX, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestTopicStore_RandomActiveNone(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE active ORDER BY random()")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "text", "keywords", "hashtags", "active"}))

	_, err := NewTopicStore(db).RandomActive(context.Background())
	assert.ErrorIs(t, err, store.ErrTopicNotFound)
}

func TestTopicStore_GetSplitsLists(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM topics WHERE id = $1")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "text", "keywords", "hashtags", "active"}).
			AddRow(int64(5), "Rust vs Go", "rust, go ,", "#lang, systems", true))

	topic, err := NewTopicStore(db).Get(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"rust", "go"}, topic.Keywords)
	assert.Equal(t, []string{"#lang", "#systems"}, topic.Hashtags)
}

func TestTopicStore_CreateDuplicate(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO topics")).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := NewTopicStore(db).Create(context.Background(), &domain.Topic{Text: "dup"})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestDocumentStore_CreateWritesMeta(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_meta")).
		WithArgs(int64(11), domain.MetaGenerated, "1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	doc := &domain.Document{
		Title:  "T",
		Status: domain.DocumentStatusDraft,
		Meta:   map[string]string{domain.MetaGenerated: "1"},
	}
	id, err := NewDocumentStore(db).Create(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.Equal(t, int64(11), doc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentStore_CreateRejectsInvalid(t *testing.T) {
	db, _ := newSQLMock(t)
	_, err := NewDocumentStore(db).Create(context.Background(), &domain.Document{Status: domain.DocumentStatusDraft})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestDocumentStore_UpdateMissing(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET title")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewDocumentStore(db).Update(context.Background(), &domain.Document{
		ID: 9, Title: "x", Status: domain.DocumentStatusDraft,
	})
	assert.ErrorIs(t, err, store.ErrDocumentNotFound)
}

func TestSeriesStore_AppendDocumentErrors(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{"missing series", "series_documents_series_id_fkey", store.ErrSeriesNotFound},
		{"missing document", "series_documents_document_id_fkey", store.ErrDocumentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newSQLMock(t)
			mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO series_documents")).
				WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: tt.constraint})

			_, err := NewSeriesStore(db).AppendDocument(context.Background(), 1, 2)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSeriesStore_AppendDocumentPosition(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(MAX(position), 0) + 1")).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(3))

	pos, err := NewSeriesStore(db).AppendDocument(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, pos)
}

func TestSettingsStore_Get(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		db, mock := newSQLMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM settings")).
			WillReturnRows(sqlmock.NewRows([]string{"value"}))

		_, found, err := NewSettingsStore(db).Get(context.Background(), "llm.provider")
		assert.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("missing table", func(t *testing.T) {
		db, mock := newSQLMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM settings")).
			WillReturnError(&pgconn.PgError{Code: "42P01"})

		_, found, err := NewSettingsStore(db).Get(context.Background(), "llm.provider")
		assert.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("present", func(t *testing.T) {
		db, mock := newSQLMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM settings")).
			WithArgs("features.auto_seo").
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("yes"))

		v, found, err := NewSettingsStore(db).Get(context.Background(), "features.auto_seo")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "yes", v)
	})
}

func TestUnitOfWork_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO series_documents")).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "series_documents_series_id_fkey"})
	mock.ExpectRollback()

	err = NewUnitOfWork(db).Within(context.Background(),
		func(ctx context.Context, docs store.ContentRepository, series store.SeriesStore) error {
			id, err := docs.Create(ctx, &domain.Document{Title: "t", Status: domain.DocumentStatusDraft})
			if err != nil {
				return err
			}
			_, err = series.AppendDocument(ctx, 99, id)
			return err
		})

	assert.ErrorIs(t, err, store.ErrSeriesNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
