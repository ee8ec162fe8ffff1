package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetSetting retrieves an app setting value. Returns an empty string when
// the key has never been set.
func (s *SQLiteStore) GetSetting(
	ctx context.Context,
	key string,
) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value,
		"SELECT value FROM app_settings WHERE key = ?", key,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting setting %q: %w", key, err)
	}
	return value, nil
}

// SetSetting stores an app setting value, replacing any previous value.
func (s *SQLiteStore) SetSetting(
	ctx context.Context,
	key, value string,
) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("setting %q: %w", key, err)
	}
	return nil
}
