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

const targetColumns = `id, name, ip_address, COALESCE(addon_id, ''), poll_interval,
	enabled, config, last_poll_at, created_at`

func scanTarget(row pgx.Row) (*models.Target, error) {
	var t models.Target
	err := row.Scan(&t.ID, &t.Name, &t.IPAddress, &t.AddonID, &t.PollIntervalSeconds,
		&t.Enabled, &t.Config, &t.LastPollAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// InsertTarget registers a device for polling. A duplicate
// (ip_address, addon_id) pair returns ErrDuplicate.
func (s *Store) InsertTarget(ctx context.Context, t *models.Target) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO targets (id, name, ip_address, addon_id, poll_interval, enabled, config, created_at)
		VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,$8)`,
		t.ID, t.Name, t.IPAddress, t.AddonID, t.PollIntervalSeconds, t.Enabled, t.Config, t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

// UpdateTarget replaces the mutable fields of a target.
func (s *Store) UpdateTarget(ctx context.Context, t *models.Target) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE targets SET name=$2, ip_address=$3, addon_id=NULLIF($4,''),
			poll_interval=$5, enabled=$6, config=$7
		WHERE id=$1`,
		t.ID, t.Name, t.IPAddress, t.AddonID, t.PollIntervalSeconds, t.Enabled, t.Config)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTarget removes a target.
func (s *Store) DeleteTarget(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM targets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTarget fetches one target by id.
func (s *Store) GetTarget(ctx context.Context, id uuid.UUID) (*models.Target, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+targetColumns+` FROM targets WHERE id = $1`, id)
	return scanTarget(row)
}

// ListTargets returns all targets ordered by name.
func (s *Store) ListTargets(ctx context.Context) ([]*models.Target, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+targetColumns+` FROM targets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var targets []*models.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// DueTargets selects enabled targets whose poll interval has elapsed.
func (s *Store) DueTargets(ctx context.Context, now time.Time) ([]*models.Target, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+targetColumns+` FROM targets
		WHERE enabled AND addon_id IS NOT NULL
		  AND (last_poll_at IS NULL OR last_poll_at + poll_interval * INTERVAL '1 second' < $1)
		ORDER BY last_poll_at NULLS FIRST`, now)
	if err != nil {
		return nil, fmt.Errorf("due targets: %w", err)
	}
	defer rows.Close()

	var targets []*models.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// TouchTargetPoll stamps last_poll_at after a poll attempt, success or not.
func (s *Store) TouchTargetPoll(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE targets SET last_poll_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch target poll: %w", err)
	}
	return nil
}
