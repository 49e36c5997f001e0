package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/store"
)

type targetRequest struct {
	Name                string         `json:"name"`
	IPAddress           string         `json:"ipAddress"`
	AddonID             string         `json:"addonId"`
	PollIntervalSeconds int            `json:"pollIntervalSeconds"`
	Enabled             *bool          `json:"enabled"`
	Config              map[string]any `json:"config"`
}

// handleListTargets serves GET /targets.
func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := s.store.ListTargets(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"targets": targets, "count": len(targets)})
}

// handleGetTarget serves GET /targets/{id}.
func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid target id")
		return
	}
	target, err := s.store.GetTarget(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, target)
}

// handleCreateTarget serves POST /targets. Duplicate (ip, addon) pairs
// get 409.
func (s *Server) handleCreateTarget(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IPAddress == "" {
		respondError(w, http.StatusBadRequest, "ipAddress required")
		return
	}
	if req.AddonID != "" && s.registry.Get(req.AddonID) == nil {
		respondError(w, http.StatusBadRequest, "unknown or disabled addon")
		return
	}

	interval := req.PollIntervalSeconds
	if interval <= 0 {
		interval = 300
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	target := &models.Target{
		ID:                  uuid.New(),
		Name:                req.Name,
		IPAddress:           req.IPAddress,
		AddonID:             req.AddonID,
		PollIntervalSeconds: interval,
		Enabled:             enabled,
		Config:              req.Config,
		CreatedAt:           time.Now().UTC(),
	}
	if err := s.store.InsertTarget(r.Context(), target); err != nil {
		respondStoreError(w, err)
		return
	}

	user := currentUser(r)
	s.audit.Record(&user.ID, "target.create", target.IPAddress)
	respondJSON(w, http.StatusCreated, target)
}

// handleUpdateTarget serves PUT /targets/{id}.
func (s *Server) handleUpdateTarget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid target id")
		return
	}
	target, err := s.store.GetTarget(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	var req targetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name != "" {
		target.Name = req.Name
	}
	if req.IPAddress != "" {
		target.IPAddress = req.IPAddress
	}
	if req.AddonID != "" {
		if s.registry.Get(req.AddonID) == nil {
			respondError(w, http.StatusBadRequest, "unknown or disabled addon")
			return
		}
		target.AddonID = req.AddonID
	}
	if req.PollIntervalSeconds > 0 {
		target.PollIntervalSeconds = req.PollIntervalSeconds
	}
	if req.Enabled != nil {
		target.Enabled = *req.Enabled
	}
	if req.Config != nil {
		target.Config = req.Config
	}

	if err := s.store.UpdateTarget(r.Context(), target); err != nil {
		respondStoreError(w, err)
		return
	}
	user := currentUser(r)
	s.audit.Record(&user.ID, "target.update", target.IPAddress)
	respondJSON(w, http.StatusOK, target)
}

// handleDeleteTarget serves DELETE /targets/{id}.
func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid target id")
		return
	}
	if err := s.store.DeleteTarget(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	user := currentUser(r)
	s.audit.Record(&user.ID, "target.delete", id.String())
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handlePollTarget serves POST /targets/{id}/poll: immediate poll outside
// the schedule.
func (s *Server) handlePollTarget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid target id")
		return
	}
	if err := s.scheduler.PollNow(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not found")
		} else {
			respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "poll enqueued"})
}
