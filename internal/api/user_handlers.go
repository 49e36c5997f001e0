package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/auth"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

type userRequest struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
	IsActive *bool       `json:"isActive"`
}

// handleListUsers serves GET /users.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
}

// handleGetUser serves GET /users/{id}.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// handleCreateUser serves POST /users.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" {
		respondError(w, http.StatusBadRequest, "username required")
		return
	}
	if err := auth.ValidatePasswordComplexity(req.Password); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	role := req.Role
	if role == "" {
		role = models.RoleViewer
	}
	if !role.Valid() {
		respondError(w, http.StatusBadRequest, "unknown role")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash password")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	user := &models.User{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.InsertUser(r.Context(), user); err != nil {
		respondStoreError(w, err)
		return
	}

	actor := currentUser(r)
	s.audit.Record(&actor.ID, "user.create", user.Username)
	respondJSON(w, http.StatusCreated, user)
}

// handleUpdateUser serves PUT /users/{id}.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.Role != "" {
		if !req.Role.Valid() {
			respondError(w, http.StatusBadRequest, "unknown role")
			return
		}
		user.Role = req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.Password != "" {
		if err := auth.ValidatePasswordComplexity(req.Password); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			log.Error().Err(err).Msg("Failed to hash password")
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		user.PasswordHash = hash
	}

	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		respondStoreError(w, err)
		return
	}
	actor := currentUser(r)
	s.audit.Record(&actor.ID, "user.update", user.Username)
	respondJSON(w, http.StatusOK, user)
}

// handleDeleteUser serves DELETE /users/{id}. The built-in admin account
// cannot be removed.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if user.Username == "admin" {
		respondError(w, http.StatusBadRequest, "cannot delete the admin user")
		return
	}

	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	actor := currentUser(r)
	s.audit.Record(&actor.ID, "user.delete", user.Username)
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
