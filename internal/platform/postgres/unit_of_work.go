package postgres

import (
	"context"
	"database/sql"

	"github.com/phrazzld/quill/internal/store"
)

// UnitOfWork implements store.UnitOfWork with store.RunInTransaction.
type UnitOfWork struct {
	db *sql.DB
}

var _ store.UnitOfWork = (*UnitOfWork)(nil)

// NewUnitOfWork creates a unit of work on db.
func NewUnitOfWork(db *sql.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// Within runs fn with document and series stores bound to one transaction.
func (u *UnitOfWork) Within(
	ctx context.Context,
	fn func(ctx context.Context, docs store.ContentRepository, series store.SeriesStore) error,
) error {
	return store.RunInTransaction(ctx, u.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, NewDocumentStore(tx), NewSeriesStore(tx))
	})
}
