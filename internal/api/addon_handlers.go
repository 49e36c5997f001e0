package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

// handleListAddons serves GET /addons with every installed addon,
// enabled or not.
func (s *Server) handleListAddons(w http.ResponseWriter, r *http.Request) {
	addons, err := s.store.ListAddons(r.Context(), false)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"addons": addons, "count": len(addons)})
}

// handleGetAddon serves GET /addons/{id}.
func (s *Server) handleGetAddon(w http.ResponseWriter, r *http.Request) {
	addon, err := s.store.GetAddon(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, addon)
}

// handleInstallAddon serves POST /addons with a manifest body. Invalid
// manifests get 422 and leave the registry untouched.
func (s *Server) handleInstallAddon(w http.ResponseWriter, r *http.Request) {
	var manifest models.Manifest
	if err := decodeJSON(r, &manifest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid manifest body")
		return
	}
	if err := s.registry.Install(r.Context(), &manifest); err != nil {
		respondStoreError(w, err)
		return
	}

	user := currentUser(r)
	s.audit.Record(&user.ID, "addon.install", manifest.ID)

	addon, err := s.store.GetAddon(r.Context(), manifest.ID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, addon)
}

// handleUninstallAddon serves DELETE /addons/{id}.
func (s *Server) handleUninstallAddon(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.Uninstall(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	user := currentUser(r)
	s.audit.Record(&user.ID, "addon.uninstall", id)
	respondJSON(w, http.StatusOK, map[string]string{"status": "uninstalled"})
}

// handleEnableAddon serves POST /addons/{id}/enable.
func (s *Server) handleEnableAddon(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.Enable(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	user := currentUser(r)
	s.audit.Record(&user.ID, "addon.enable", id)
	respondJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
}

// handleDisableAddon serves POST /addons/{id}/disable.
func (s *Server) handleDisableAddon(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.Disable(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	user := currentUser(r)
	s.audit.Record(&user.ID, "addon.disable", id)
	respondJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}

// handleListAudit serves GET /audit?limit=&offset=.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	events, err := s.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}
