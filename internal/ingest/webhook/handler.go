// Package webhook ingests HTTP POSTs at /webhooks/{path}. The path selects
// the owning addon; payloads go through the parser and engine like every
// other transport.
package webhook

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/engine"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/metrics"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/parser"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/registry"
)

const (
	maxBodyBytes   = 1 << 20 // 1 MiB
	defaultTimeout = 30 * time.Second
)

// Handler serves the webhook ingestion endpoint. Concurrency is bounded by
// a semaphore sized to the database pool; over-limit requests get 503.
type Handler struct {
	registry *registry.Registry
	engine   *engine.Engine
	sem      *semaphore.Weighted
	timeout  time.Duration
}

// NewHandler builds the webhook ingestor with the given concurrency cap.
func NewHandler(reg *registry.Registry, eng *engine.Engine, capacity int) *Handler {
	if capacity <= 0 {
		capacity = 20
	}
	return &Handler{
		registry: reg,
		engine:   eng,
		sem:      semaphore.NewWeighted(int64(capacity)),
		timeout:  defaultTimeout,
	}
}

// ServeHTTP handles POST /webhooks/{path}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics.WebhooksReceived.Inc()

	path := chi.URLParam(r, "path")
	addon := h.registry.FindByWebhook(path)
	if addon == nil {
		metrics.WebhooksDropped.Inc()
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "unknown webhook path"})
		return
	}

	if !h.sem.TryAcquire(1) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "over capacity"})
		return
	}

	payload, err := decodeBody(r)
	if err != nil {
		h.sem.Release(1)
		metrics.WebhooksDropped.Inc()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	payload[parser.FieldSourceIP] = remoteIP(r)

	parsed, err := parser.Parse(payload, addon)
	if err != nil {
		h.sem.Release(1)
		metrics.WebhooksDropped.Inc()
		log.Debug().Err(err).Str("addon", addon.ID).Msg("Webhook parse failed")
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "unparseable payload"})
		return
	}

	// Process with a bounded budget; if the engine is slow the client gets
	// 202 and processing continues in the background.
	done := make(chan struct{})
	go func() {
		defer h.sem.Release(1)
		defer close(done)

		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		alert, err := h.engine.Process(ctx, parsed, addon)
		switch {
		case err != nil:
			metrics.WebhookErrors.Inc()
			log.Error().Err(err).Str("addon", addon.ID).Msg("Failed to process webhook alert")
		case alert == nil:
			metrics.WebhooksDropped.Inc()
		default:
			metrics.WebhooksProcessed.Inc()
		}
	}()

	select {
	case <-done:
		writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
	case <-time.After(h.timeout):
		writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true, "async": true})
	}
}

// decodeBody reads the payload as JSON or form-encoded depending on
// Content-Type.
func decodeBody(r *http.Request) (map[string]any, error) {
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") || contentType == "" {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	payload := make(map[string]any, len(r.PostForm))
	for key := range r.PostForm {
		payload[key] = r.PostForm.Get(key)
	}
	return payload, nil
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
