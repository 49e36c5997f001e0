package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/auth"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

// handleListAPIKeys serves GET /api-keys. Admins see every key; everyone
// else sees their own.
func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var keys []*models.APIKey
	var err error
	if user.Role == models.RoleAdmin {
		keys, err = s.store.ListAPIKeys(r.Context(), nil)
	} else {
		keys, err = s.store.ListAPIKeys(r.Context(), &user.ID)
	}
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"apiKeys": keys, "count": len(keys)})
}

type apiKeyRequest struct {
	Name          string `json:"name"`
	ExpiresInDays int    `json:"expiresInDays"`
}

// handleCreateAPIKey serves POST /api-keys. The raw key appears in this
// response and nowhere else.
func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req apiKeyRequest
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "name required")
		return
	}

	raw, hash, prefix, err := auth.GenerateAPIKey()
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate API key")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user := currentUser(r)
	key := &models.APIKey{
		ID:        uuid.New(),
		UserID:    user.ID,
		Name:      req.Name,
		KeyHash:   hash,
		KeyPrefix: prefix,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if req.ExpiresInDays > 0 {
		expires := time.Now().UTC().AddDate(0, 0, req.ExpiresInDays)
		key.ExpiresAt = &expires
	}

	if err := s.store.InsertAPIKey(r.Context(), key); err != nil {
		respondStoreError(w, err)
		return
	}

	s.audit.Record(&user.ID, "apikey.create", req.Name)
	respondJSON(w, http.StatusCreated, map[string]any{
		"apiKey": key,
		"key":    raw,
	})
}
