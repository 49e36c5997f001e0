package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/auth"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/store"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin exchanges credentials for a token pair.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil || req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Msg("Login lookup failed")
		}
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !user.IsActive || !auth.CheckPasswordHash(req.Password, user.PasswordHash, s.passwordSalt) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	pair, err := s.issuer.IssuePair(user)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue token pair")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.store.TouchLastLogin(r.Context(), user.ID, time.Now().UTC()); err != nil {
		log.Debug().Err(err).Msg("Failed to stamp last login")
	}
	s.audit.Record(&user.ID, "auth.login", user.Username)

	respondJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// handleRefresh rotates a token pair from a valid refresh token.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "refresh_token required")
		return
	}

	claims, err := s.issuer.ParseRefresh(req.RefreshToken)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	id, err := claims.UserID()
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil || !user.IsActive {
		respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	pair, err := s.issuer.IssuePair(user)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue token pair")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, pair)
}

// handleMe returns the authenticated user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, currentUser(r))
}
