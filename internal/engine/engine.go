// Package engine is the only component that mutates alert state. It applies
// the addon's severity/category/title mappings, deduplicates by fingerprint,
// drives lifecycle transitions, and publishes events after each committed
// write. Writes for a given fingerprint are serialized behind a sharded
// lock; distinct fingerprints proceed in parallel.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/metrics"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/store"
)

// Event types published on the bus.
const (
	EventAlertCreated  = "alert_created"
	EventAlertUpdated  = "alert_updated"
	EventAlertResolved = "alert_resolved"
)

// Resolution sources recorded in logs.
const (
	SourceManual     = "manual"
	SourceClearEvent = "clear_event"
	SourceAutoPoll   = "auto_poll"
)

// ErrInvalidTransition rejects lifecycle moves the state machine forbids.
var ErrInvalidTransition = errors.New("invalid state transition")

// Store is the persistence surface the engine mutates.
type Store interface {
	InsertAlert(ctx context.Context, a *models.Alert) error
	OpenAlertByFingerprint(ctx context.Context, fingerprint string) (*models.Alert, error)
	RefreshAlert(ctx context.Context, id uuid.UUID, message string, raw json.RawMessage) (*models.Alert, error)
	AcknowledgeAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	ResolveAlert(ctx context.Context, id uuid.UUID, at time.Time) (*models.Alert, error)
	GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	DeleteAlert(ctx context.Context, id uuid.UUID) error
	ListAlerts(ctx context.Context, f models.AlertFilter) ([]*models.Alert, error)
	AlertStats(ctx context.Context) (*models.AlertStats, error)
}

// Publisher delivers alert events to observers after commits.
type Publisher interface {
	Publish(eventType string, alert *models.Alert)
}

// Engine applies manifest mappings and owns the alert state machine.
type Engine struct {
	store Store
	pub   Publisher
	locks lockTable
	now   func() time.Time
}

// New wires the engine to its store and event publisher.
func New(st Store, pub Publisher) *Engine {
	return &Engine{
		store: st,
		pub:   pub,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Process runs one parsed record through classification, deduplication, and
// lifecycle handling. A nil alert with nil error means the record was
// deliberately dropped (disabled alert type).
func (e *Engine) Process(ctx context.Context, parsed *models.ParsedAlert, addon *models.Addon) (*models.Alert, error) {
	if parsed == nil || addon == nil {
		return nil, fmt.Errorf("process: nil parsed record or addon")
	}
	if !addon.IsAlertEnabled(parsed.AlertType) {
		log.Debug().Str("addon", addon.ID).Str("alertType", parsed.AlertType).
			Msg("Alert type disabled by manifest, dropping")
		return nil, nil
	}

	fingerprint := Fingerprint(addon.ID, parsed.AlertType, parsed.DeviceIP)

	unlock := e.locks.lock(fingerprint)
	defer unlock()

	existing, err := e.store.OpenAlertByFingerprint(ctx, fingerprint)
	switch {
	case err == nil:
		return e.processRepeat(ctx, parsed, existing)
	case errors.Is(err, store.ErrNotFound):
		return e.processNew(ctx, parsed, addon, fingerprint)
	default:
		return nil, fmt.Errorf("lookup fingerprint %s: %w", fingerprint, err)
	}
}

// processRepeat handles a record whose fingerprint already has an open row.
func (e *Engine) processRepeat(ctx context.Context, parsed *models.ParsedAlert, existing *models.Alert) (*models.Alert, error) {
	raw := marshalRaw(parsed.RawData)
	updated, err := e.store.RefreshAlert(ctx, existing.ID, parsed.Message, raw)
	if err != nil {
		return nil, fmt.Errorf("refresh alert %s: %w", existing.ID, err)
	}
	e.pub.Publish(EventAlertUpdated, updated)

	if parsed.IsClear {
		resolved, err := e.resolveLocked(ctx, updated.ID, SourceClearEvent)
		if err != nil {
			return nil, err
		}
		return resolved, nil
	}
	return updated, nil
}

// processNew inserts a fresh row. A clear event with no open fingerprint
// still produces a row, immediately resolved, so the recovery is auditable.
func (e *Engine) processNew(ctx context.Context, parsed *models.ParsedAlert, addon *models.Addon, fingerprint string) (*models.Alert, error) {
	now := e.now()

	occurredAt := now
	if parsed.Timestamp != nil {
		occurredAt = parsed.Timestamp.UTC()
	}

	alert := &models.Alert{
		ID:              uuid.New(),
		AddonID:         addon.ID,
		Fingerprint:     fingerprint,
		DeviceIP:        parsed.DeviceIP,
		DeviceName:      parsed.DeviceName,
		AlertType:       parsed.AlertType,
		Severity:        addon.SeverityFor(parsed.AlertType),
		Category:        addon.CategoryFor(parsed.AlertType),
		Title:           e.resolveTitle(parsed, addon),
		Message:         parsed.Message,
		Status:          models.StatusActive,
		IsClear:         parsed.IsClear,
		OccurredAt:      occurredAt,
		ReceivedAt:      now,
		OccurrenceCount: 1,
		RawData:         marshalRaw(parsed.RawData),
		CreatedAt:       now,
	}

	if err := e.store.InsertAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("insert alert: %w", err)
	}
	e.pub.Publish(EventAlertCreated, alert)

	log.Info().Str("alertId", alert.ID.String()).Str("addon", addon.ID).
		Str("alertType", alert.AlertType).Str("deviceIp", alert.DeviceIP).
		Str("severity", string(alert.Severity)).Msg("Alert created")

	if parsed.IsClear {
		// The clear arrived with no open alert to close.
		metrics.ClearsDropped.Inc()
		return e.resolveLocked(ctx, alert.ID, SourceClearEvent)
	}
	return alert, nil
}

// resolveTitle picks the mapped title or builds the default
// "{addon}: {Alert Type} on {device}".
func (e *Engine) resolveTitle(parsed *models.ParsedAlert, addon *models.Addon) string {
	if title := addon.TitleFor(parsed.AlertType); title != "" {
		return title
	}
	device := parsed.DeviceIP
	if device == "" {
		device = parsed.DeviceName
	}
	if device == "" {
		device = "Unknown"
	}
	return fmt.Sprintf("%s: %s on %s", addon.Name, models.TitleCase(parsed.AlertType), device)
}

// Acknowledge transitions active -> acknowledged. Re-acknowledging an
// already acknowledged alert is a no-op; any other state is rejected.
func (e *Engine) Acknowledge(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	updated, err := e.store.AcknowledgeAlert(ctx, id)
	if err == nil {
		e.pub.Publish(EventAlertUpdated, updated)
		return updated, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("acknowledge alert %s: %w", id, err)
	}

	current, getErr := e.store.GetAlert(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if current.Status == models.StatusAcknowledged {
		return current, nil
	}
	return nil, fmt.Errorf("%w: cannot acknowledge alert in status %s", ErrInvalidTransition, current.Status)
}

// Resolve transitions any non-resolved status to resolved. Resolving an
// already resolved alert is idempotent.
func (e *Engine) Resolve(ctx context.Context, id uuid.UUID, source string) (*models.Alert, error) {
	alert, err := e.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.lock(alert.Fingerprint)
	defer unlock()

	if alert.Status == models.StatusResolved {
		return alert, nil
	}
	return e.resolveLocked(ctx, id, source)
}

// resolveLocked performs the resolve write; the fingerprint lock must be held.
func (e *Engine) resolveLocked(ctx context.Context, id uuid.UUID, source string) (*models.Alert, error) {
	resolved, err := e.store.ResolveAlert(ctx, id, e.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Lost the race to another resolver; report the final state.
			return e.store.GetAlert(ctx, id)
		}
		return nil, fmt.Errorf("resolve alert %s: %w", id, err)
	}
	e.pub.Publish(EventAlertResolved, resolved)

	log.Info().Str("alertId", resolved.ID.String()).Str("source", source).Msg("Alert resolved")
	return resolved, nil
}

// AutoResolve closes the open alert for (addon, alertType, deviceIP) if one
// exists, reporting whether anything was resolved. Poll ingestors call this
// after a successful probe that previously failed.
func (e *Engine) AutoResolve(ctx context.Context, addonID, alertType, deviceIP string) (bool, error) {
	fingerprint := Fingerprint(addonID, alertType, deviceIP)

	unlock := e.locks.lock(fingerprint)
	defer unlock()

	open, err := e.store.OpenAlertByFingerprint(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("auto-resolve lookup: %w", err)
	}

	if _, err := e.resolveLocked(ctx, open.ID, SourceAutoPoll); err != nil {
		return false, err
	}
	return true, nil
}

// Get fetches one alert.
func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	return e.store.GetAlert(ctx, id)
}

// Delete removes an alert row outright (admin operation).
func (e *Engine) Delete(ctx context.Context, id uuid.UUID) error {
	return e.store.DeleteAlert(ctx, id)
}

// List returns alerts matching the filter, newest occurrence first.
func (e *Engine) List(ctx context.Context, f models.AlertFilter) ([]*models.Alert, error) {
	return e.store.ListAlerts(ctx, f)
}

// Stats aggregates alert counts.
func (e *Engine) Stats(ctx context.Context) (*models.AlertStats, error) {
	return e.store.AlertStats(ctx)
}

func marshalRaw(raw map[string]any) json.RawMessage {
	if raw == nil {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to marshal raw alert data")
		return nil
	}
	return data
}
