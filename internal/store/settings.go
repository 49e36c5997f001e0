package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

// GetSetting fetches one system setting.
func (s *Store) GetSetting(ctx context.Context, key string) (*models.SystemSetting, error) {
	var setting models.SystemSetting
	err := s.pool.QueryRow(ctx, `
		SELECT key, value, updated_at FROM system_settings WHERE key = $1`, key).
		Scan(&setting.Key, &setting.Value, &setting.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get setting %s: %w", key, err)
	}
	return &setting, nil
}

// PutSetting upserts one system setting.
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO system_settings (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return nil
}
