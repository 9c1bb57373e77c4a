package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/quill/internal/platform/postgres"
	"github.com/phrazzld/quill/internal/store"
	"github.com/stretchr/testify/assert"
)

func newPgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		SchemaName:     "public",
		TableName:      "generation_tasks",
		ColumnName:     "payload",
		ConstraintName: "test_constraint",
	}
}

// MockResult implements sql.Result for testing
type MockResult struct {
	rowsAffected int64
	err          error
}

func (m MockResult) LastInsertId() (int64, error) { return 0, m.err }
func (m MockResult) RowsAffected() (int64, error) { return m.rowsAffected, m.err }

func TestCodePredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   func(error) bool
		code string
	}{
		{"unique", postgres.IsUniqueViolation, "23505"},
		{"foreign key", postgres.IsForeignKeyViolation, "23503"},
		{"check", postgres.IsCheckConstraintViolation, "23514"},
		{"not null", postgres.IsNotNullViolation, "23502"},
		{"undefined table", postgres.IsUndefinedTable, "42P01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.True(t, tt.fn(newPgError(tt.code)))
			assert.True(t, tt.fn(fmt.Errorf("wrapped: %w", newPgError(tt.code))))
			assert.False(t, tt.fn(newPgError("00000")))
			assert.False(t, tt.fn(errors.New("generic error")))
			assert.False(t, tt.fn(nil))
		})
	}
}

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	assert.True(t, postgres.IsNotFoundError(sql.ErrNoRows))
	assert.True(t, postgres.IsNotFoundError(store.ErrTaskNotFound))
	assert.True(t, postgres.IsNotFoundError(fmt.Errorf("x: %w", store.ErrNotFound)))
	assert.False(t, postgres.IsNotFoundError(errors.New("other")))
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		result   sql.Result
		notFound error
		wantErr  error
		wantAny  bool
	}{
		{name: "one row", result: MockResult{rowsAffected: 1}},
		{name: "no rows default", result: MockResult{}, wantErr: store.ErrNotFound},
		{name: "no rows specific", result: MockResult{}, notFound: store.ErrDocumentNotFound, wantErr: store.ErrDocumentNotFound},
		{name: "result error", result: MockResult{err: errors.New("boom")}, wantAny: true},
		{name: "nil result", result: nil, wantAny: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := postgres.CheckRowsAffected(tt.result, tt.notFound)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantAny:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"unique", newPgError("23505"), store.ErrDuplicate},
		{"foreign key", newPgError("23503"), store.ErrInvalidEntity},
		{"check", newPgError("23514"), store.ErrInvalidEntity},
		{"not null", newPgError("23502"), store.ErrInvalidEntity},
		{"undefined table", newPgError("42P01"), store.ErrPersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, postgres.MapError(tt.err), tt.want)
		})
	}

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, postgres.MapError(nil))
	})

	t.Run("unmapped passes through", func(t *testing.T) {
		orig := errors.New("plain")
		assert.Equal(t, orig, postgres.MapError(orig))
	})
}

func TestMapUniqueViolation(t *testing.T) {
	t.Parallel()

	specific := errors.New("topic exists")

	assert.ErrorIs(t, postgres.MapUniqueViolation(newPgError("23505"), "", specific), specific)
	err := postgres.MapUniqueViolation(newPgError("23505"), "topic", nil)
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.Contains(t, err.Error(), "topic already exists")

	other := errors.New("other")
	assert.Equal(t, other, postgres.MapUniqueViolation(other, "topic", nil))
}
