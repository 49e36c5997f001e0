package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

const alertColumns = `id, addon_id, fingerprint, device_ip, device_name, alert_type,
	severity, category, title, message, status, is_clear, occurred_at, received_at,
	resolved_at, occurrence_count, raw_data, created_at`

func scanAlert(row pgx.Row) (*models.Alert, error) {
	var a models.Alert
	err := row.Scan(&a.ID, &a.AddonID, &a.Fingerprint, &a.DeviceIP, &a.DeviceName,
		&a.AlertType, &a.Severity, &a.Category, &a.Title, &a.Message, &a.Status,
		&a.IsClear, &a.OccurredAt, &a.ReceivedAt, &a.ResolvedAt, &a.OccurrenceCount,
		&a.RawData, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// InsertAlert persists a freshly created alert row.
func (s *Store) InsertAlert(ctx context.Context, a *models.Alert) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alerts (id, addon_id, fingerprint, device_ip, device_name,
			alert_type, severity, category, title, message, status, is_clear,
			occurred_at, received_at, resolved_at, occurrence_count, raw_data, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		a.ID, a.AddonID, a.Fingerprint, a.DeviceIP, a.DeviceName, a.AlertType,
		a.Severity, a.Category, a.Title, a.Message, a.Status, a.IsClear,
		a.OccurredAt, a.ReceivedAt, a.ResolvedAt, a.OccurrenceCount, a.RawData, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// OpenAlertByFingerprint returns the single non-resolved alert for a
// fingerprint, or ErrNotFound.
func (s *Store) OpenAlertByFingerprint(ctx context.Context, fingerprint string) (*models.Alert, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+alertColumns+` FROM alerts
		WHERE fingerprint = $1 AND status != 'resolved'
		ORDER BY created_at DESC LIMIT 1`, fingerprint)
	return scanAlert(row)
}

// RefreshAlert records a repeat occurrence: bumps the count, refreshes the
// raw snapshot, and replaces the message only when the new one is non-empty.
func (s *Store) RefreshAlert(ctx context.Context, id uuid.UUID, message string, raw json.RawMessage) (*models.Alert, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE alerts SET
			occurrence_count = occurrence_count + 1,
			message = CASE WHEN $2 != '' THEN $2 ELSE message END,
			raw_data = COALESCE($3, raw_data)
		WHERE id = $1
		RETURNING `+alertColumns, id, message, raw)
	return scanAlert(row)
}

// AcknowledgeAlert transitions active -> acknowledged. ErrNotFound means the
// alert is missing or not in the active state.
func (s *Store) AcknowledgeAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE alerts SET status = 'acknowledged'
		WHERE id = $1 AND status = 'active'
		RETURNING `+alertColumns, id)
	return scanAlert(row)
}

// ResolveAlert transitions any non-resolved status to resolved and stamps
// resolved_at. ErrNotFound means the alert is missing or already resolved.
func (s *Store) ResolveAlert(ctx context.Context, id uuid.UUID, at time.Time) (*models.Alert, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE alerts SET status = 'resolved', resolved_at = $2
		WHERE id = $1 AND status != 'resolved'
		RETURNING `+alertColumns, id, at)
	return scanAlert(row)
}

// GetAlert fetches one alert by id.
func (s *Store) GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)
	return scanAlert(row)
}

// DeleteAlert removes an alert row outright.
func (s *Store) DeleteAlert(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAlerts returns alerts matching the filter, newest occurrence first.
func (s *Store) ListAlerts(ctx context.Context, f models.AlertFilter) ([]*models.Alert, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.Status) > 0 {
		statuses := make([]string, len(f.Status))
		for i, st := range f.Status {
			statuses[i] = string(st)
		}
		conds = append(conds, "status = ANY("+arg(statuses)+")")
	}
	if len(f.Severity) > 0 {
		severities := make([]string, len(f.Severity))
		for i, sv := range f.Severity {
			severities[i] = string(sv)
		}
		conds = append(conds, "severity = ANY("+arg(severities)+")")
	}
	if f.AddonID != "" {
		conds = append(conds, "addon_id = "+arg(f.AddonID))
	}
	if f.DeviceIP != "" {
		conds = append(conds, "device_ip = "+arg(f.DeviceIP))
	}

	query := `SELECT ` + alertColumns + ` FROM alerts`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY occurred_at DESC"

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += " LIMIT " + arg(limit)
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// AlertStats aggregates counts by severity, status, and addon over
// non-resolved alerts, plus the total active count.
func (s *Store) AlertStats(ctx context.Context) (*models.AlertStats, error) {
	stats := &models.AlertStats{
		BySeverity: make(map[models.Severity]int),
		ByStatus:   make(map[models.AlertStatus]int),
		ByAddon:    make(map[string]int),
	}

	rows, err := s.pool.Query(ctx, `
		SELECT severity, status, addon_id, COUNT(*) FROM alerts
		WHERE status != 'resolved'
		GROUP BY severity, status, addon_id`)
	if err != nil {
		return nil, fmt.Errorf("alert stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			severity models.Severity
			status   models.AlertStatus
			addonID  string
			count    int
		)
		if err := rows.Scan(&severity, &status, &addonID, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.BySeverity[severity] += count
		stats.ByStatus[status] += count
		stats.ByAddon[addonID] += count
		if status == models.StatusActive {
			stats.TotalActive += count
		}
	}
	return stats, rows.Err()
}
