package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/engine"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

// handleListAlerts serves GET /alerts with filter query parameters.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	filter := alertFilterFromQuery(r)
	alerts, err := s.engine.List(r.Context(), filter)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func alertFilterFromQuery(r *http.Request) models.AlertFilter {
	q := r.URL.Query()
	filter := models.AlertFilter{
		AddonID:  q.Get("addon_id"),
		DeviceIP: q.Get("device_ip"),
	}
	for _, raw := range strings.Split(q.Get("status"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			filter.Status = append(filter.Status, models.AlertStatus(raw))
		}
	}
	for _, raw := range strings.Split(q.Get("severity"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			filter.Severity = append(filter.Severity, models.Severity(raw))
		}
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = n
	}
	return filter
}

// handleAlertStats serves GET /alerts/stats.
func (s *Server) handleAlertStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// handleGetAlert serves GET /alerts/{id}.
func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid alert id")
		return
	}
	alert, err := s.engine.Get(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, alert)
}

// handleAcknowledgeAlert serves POST /alerts/{id}/acknowledge.
func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid alert id")
		return
	}
	alert, err := s.engine.Acknowledge(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	user := currentUser(r)
	s.audit.Record(&user.ID, "alert.acknowledge", id.String())
	respondJSON(w, http.StatusOK, alert)
}

// handleResolveAlert serves POST /alerts/{id}/resolve.
func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid alert id")
		return
	}
	alert, err := s.engine.Resolve(r.Context(), id, engine.SourceManual)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	user := currentUser(r)
	s.audit.Record(&user.ID, "alert.resolve", id.String())
	respondJSON(w, http.StatusOK, alert)
}

// handleDeleteAlert serves DELETE /alerts/{id}.
func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid alert id")
		return
	}
	if err := s.engine.Delete(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	user := currentUser(r)
	s.audit.Record(&user.ID, "alert.delete", id.String())
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
