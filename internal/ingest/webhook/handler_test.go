package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/engine"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/registry"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/store"
)

// alertStore is a minimal engine.Store for handler tests.
type alertStore struct {
	mu     sync.Mutex
	alerts map[uuid.UUID]*models.Alert
}

func newAlertStore() *alertStore {
	return &alertStore{alerts: make(map[uuid.UUID]*models.Alert)}
}

func (m *alertStore) InsertAlert(_ context.Context, a *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[a.ID] = a.Clone()
	return nil
}

func (m *alertStore) OpenAlertByFingerprint(_ context.Context, fp string) (*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.Fingerprint == fp && a.Status != models.StatusResolved {
			return a.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *alertStore) RefreshAlert(_ context.Context, id uuid.UUID, message string, raw json.RawMessage) (*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	a.OccurrenceCount++
	if message != "" {
		a.Message = message
	}
	if raw != nil {
		a.RawData = raw
	}
	return a.Clone(), nil
}

func (m *alertStore) AcknowledgeAlert(_ context.Context, id uuid.UUID) (*models.Alert, error) {
	return nil, store.ErrNotFound
}

func (m *alertStore) ResolveAlert(_ context.Context, id uuid.UUID, at time.Time) (*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok || a.Status == models.StatusResolved {
		return nil, store.ErrNotFound
	}
	a.Status = models.StatusResolved
	a.ResolvedAt = &at
	return a.Clone(), nil
}

func (m *alertStore) GetAlert(_ context.Context, id uuid.UUID) (*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a.Clone(), nil
}

func (m *alertStore) DeleteAlert(_ context.Context, id uuid.UUID) error { return nil }

func (m *alertStore) ListAlerts(_ context.Context, _ models.AlertFilter) ([]*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (m *alertStore) AlertStats(_ context.Context) (*models.AlertStats, error) {
	return &models.AlertStats{}, nil
}

// addonStore is a minimal registry.Store preloaded with one webhook addon.
type addonStore struct {
	addons map[string]*models.Addon
}

func (f *addonStore) ListAddons(_ context.Context, _ bool) ([]*models.Addon, error) {
	var out []*models.Addon
	for _, a := range f.addons {
		out = append(out, a)
	}
	return out, nil
}

func (f *addonStore) GetAddon(_ context.Context, id string) (*models.Addon, error) {
	a, ok := f.addons[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a, nil
}

func (f *addonStore) UpsertAddon(context.Context, *models.Manifest, bool) error { return nil }
func (f *addonStore) DeleteAddon(context.Context, string) error                 { return nil }
func (f *addonStore) SetAddonEnabled(context.Context, string, bool) error       { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(string, *models.Alert) {}

func newTestHandler(t *testing.T) (*Handler, *alertStore) {
	t.Helper()

	manifest := &models.Manifest{
		ID:      "prtg",
		Name:    "PRTG",
		Version: "1.0.0",
		Method:  models.MethodWebhook,
		Parser: models.ParserSpec{
			Type: models.ParserJSON,
			FieldMappings: map[string]string{
				"alert_type": "kind",
				"device_ip":  "device",
				"message":    "text",
			},
		},
		Webhook: &models.WebhookSpec{EndpointPath: "prtg"},
	}
	reg := registry.New(&addonStore{addons: map[string]*models.Addon{
		"prtg": {ID: "prtg", Name: "PRTG", Method: models.MethodWebhook, Manifest: manifest, Enabled: true},
	}})
	require.NoError(t, reg.Reload(context.Background()))

	st := newAlertStore()
	eng := engine.New(st, nopPublisher{})
	return NewHandler(reg, eng, 4), st
}

func post(handler *Handler, path, contentType, body string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Method(http.MethodPost, "/webhooks/{path}", handler)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWebhookAcceptsJSONPayload(t *testing.T) {
	handler, st := newTestHandler(t)

	rec := post(handler, "prtg", "application/json",
		`{"kind":"link_down","device":"10.0.0.5","text":"port down"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	alerts, err := st.ListAlerts(context.Background(), models.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "link_down", alerts[0].AlertType)
	assert.Equal(t, "10.0.0.5", alerts[0].DeviceIP)
}

func TestWebhookAcceptsFormPayload(t *testing.T) {
	handler, st := newTestHandler(t)

	rec := post(handler, "prtg", "application/x-www-form-urlencoded",
		"kind=link_down&device=10.0.0.6&text=down")
	assert.Equal(t, http.StatusOK, rec.Code)

	alerts, err := st.ListAlerts(context.Background(), models.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "10.0.0.6", alerts[0].DeviceIP)
}

func TestWebhookUnknownPath(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := post(handler, "zabbix", "application/json", `{"kind":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "detail")
}

func TestWebhookUnparseablePayload(t *testing.T) {
	handler, _ := newTestHandler(t)

	// Valid JSON, but no alert_type can be extracted.
	rec := post(handler, "prtg", "application/json", `{"unrelated":"stuff"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Not JSON at all.
	rec = post(handler, "prtg", "application/json", `{{{`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestWebhookFallsBackToRemoteIP(t *testing.T) {
	handler, st := newTestHandler(t)

	rec := post(handler, "prtg", "application/json", `{"kind":"link_down","text":"no device field"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	alerts, err := st.ListAlerts(context.Background(), models.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	// httptest requests come from 192.0.2.1.
	assert.Equal(t, "192.0.2.1", alerts[0].DeviceIP)
}
