package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

const apiKeyColumns = `id, user_id, name, key_hash, key_prefix, is_active,
	created_at, last_used_at, expires_at`

func scanAPIKey(row pgx.Row) (*models.APIKey, error) {
	var k models.APIKey
	err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix,
		&k.IsActive, &k.CreatedAt, &k.LastUsedAt, &k.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &k, nil
}

// InsertAPIKey stores a new key record (hash and prefix only).
func (s *Store) InsertAPIKey(ctx context.Context, k *models.APIKey) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, is_active, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		k.ID, k.UserID, k.Name, k.KeyHash, k.KeyPrefix, k.IsActive, k.CreatedAt, k.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// GetAPIKeyByHash resolves an active key by its hash for authentication.
func (s *Store) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+apiKeyColumns+` FROM api_keys
		WHERE key_hash = $1 AND is_active`, hash)
	return scanAPIKey(row)
}

// ListAPIKeys returns keys for one user, or all keys when userID is nil.
func (s *Store) ListAPIKeys(ctx context.Context, userID *uuid.UUID) ([]*models.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys`
	var args []any
	if userID != nil {
		query += ` WHERE user_id = $1`
		args = append(args, *userID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// TouchAPIKeyUsed stamps last_used_at after successful authentication.
func (s *Store) TouchAPIKeyUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}
