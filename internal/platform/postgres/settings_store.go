package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/phrazzld/quill/internal/store"
)

// SettingsStore implements store.SettingsStore on the settings table. A
// missing table reads as no settings.
type SettingsStore struct {
	db store.DBTX
}

var _ store.SettingsStore = (*SettingsStore)(nil)

// NewSettingsStore creates a settings store.
func NewSettingsStore(db store.DBTX) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) || IsUndefinedTable(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting: %w", MapError(err))
	}
	return value, true, nil
}

func (s *SettingsStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	if err != nil {
		return fmt.Errorf("%w: failed to write setting: %v", store.ErrPersistence, MapError(err))
	}
	return nil
}

func (s *SettingsStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = $1`, key); err != nil {
		return fmt.Errorf("%w: failed to delete setting: %v", store.ErrPersistence, MapError(err))
	}
	return nil
}

func (s *SettingsStore) All(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string)
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		if IsUndefinedTable(err) {
			return out, nil
		}
		return nil, fmt.Errorf("failed to list settings: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		out[key] = value
	}
	return out, rows.Err()
}
