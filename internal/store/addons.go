package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

func scanAddon(row pgx.Row) (*models.Addon, error) {
	var (
		a        models.Addon
		manifest []byte
	)
	err := row.Scan(&a.ID, &a.Name, &a.Version, &a.Method, &a.Category,
		&a.Description, &manifest, &a.Enabled, &a.InstalledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(manifest, &a.Manifest); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", a.ID, err)
	}
	return &a, nil
}

// UpsertAddon installs or replaces an addon by id.
func (s *Store) UpsertAddon(ctx context.Context, m *models.Manifest, enabled bool) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO addons (id, name, version, method, category, description, manifest, enabled)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			version = EXCLUDED.version,
			method = EXCLUDED.method,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			manifest = EXCLUDED.manifest,
			enabled = EXCLUDED.enabled`,
		m.ID, m.Name, m.Version, m.Method, m.Category, m.Description, raw, enabled)
	if err != nil {
		return fmt.Errorf("upsert addon %s: %w", m.ID, err)
	}
	return nil
}

// DeleteAddon uninstalls an addon.
func (s *Store) DeleteAddon(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM addons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete addon %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAddonEnabled toggles an addon on or off.
func (s *Store) SetAddonEnabled(ctx context.Context, id string, enabled bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE addons SET enabled = $2 WHERE id = $1`, id, enabled)
	if err != nil {
		return fmt.Errorf("set addon %s enabled=%t: %w", id, enabled, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAddon fetches one addon regardless of enabled state.
func (s *Store) GetAddon(ctx context.Context, id string) (*models.Addon, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, version, method, category, description, manifest, enabled, installed_at
		FROM addons WHERE id = $1`, id)
	return scanAddon(row)
}

// ListAddons returns all addons; enabledOnly narrows to enabled rows.
func (s *Store) ListAddons(ctx context.Context, enabledOnly bool) ([]*models.Addon, error) {
	query := `
		SELECT id, name, version, method, category, description, manifest, enabled, installed_at
		FROM addons`
	if enabledOnly {
		query += ` WHERE enabled`
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list addons: %w", err)
	}
	defer rows.Close()

	var addons []*models.Addon
	for rows.Next() {
		a, err := scanAddon(rows)
		if err != nil {
			return nil, err
		}
		addons = append(addons, a)
	}
	return addons, rows.Err()
}

// isUniqueViolation reports whether err is a Postgres unique constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
