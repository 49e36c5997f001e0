package api

import (
	"net/http"
	"time"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/metrics"
)

// handleHealth serves GET /health. Status degrades when the database is
// unreachable; the process keeps serving what it can.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{
		"database":  "ok",
		"registry":  "ok",
		"websocket": "ok",
	}
	status := "healthy"

	if err := s.store.Ping(r.Context()); err != nil {
		components["database"] = err.Error()
		status = "degraded"
	}
	if len(s.registry.ListEnabled()) == 0 {
		components["registry"] = "no enabled addons"
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"version":    s.version,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"components": components,
	})
}

// handleStats serves GET /stats: alert aggregates plus ingest counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	alertStats, err := s.engine.Stats(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"alerts":           alertStats,
		"ingest":           metrics.Snapshot(),
		"websocketClients": s.hub.ClientCount(),
	})
}
