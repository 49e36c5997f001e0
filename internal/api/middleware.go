package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/auth"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/store"
)

// Role aliases keep the route table readable.
const (
	roleAdmin    = models.RoleAdmin
	roleOperator = models.RoleOperator
)

type contextKey string

const userContextKey contextKey = "user"

// currentUser returns the authenticated user stored by the middleware.
func currentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(userContextKey).(*models.User)
	return user
}

// authenticate accepts either a bearer JWT or an API key and attaches the
// resolved user to the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.resolveUser(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var errUnauthenticated = errors.New("unauthenticated")

func (s *Server) resolveUser(r *http.Request) (*models.User, error) {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return s.userFromToken(r.Context(), strings.TrimPrefix(header, "Bearer "))
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return s.userFromAPIKey(r.Context(), key)
	}
	return nil, errUnauthenticated
}

func (s *Server) userFromToken(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.issuer.ParseAccess(token)
	if err != nil {
		return nil, errUnauthenticated
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, errUnauthenticated
	}
	user, err := s.store.GetUser(ctx, id)
	if err != nil || !user.IsActive {
		return nil, errUnauthenticated
	}
	return user, nil
}

func (s *Server) userFromAPIKey(ctx context.Context, raw string) (*models.User, error) {
	key, err := s.store.GetAPIKeyByHash(ctx, auth.HashAPIKey(raw))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Msg("API key lookup failed")
		}
		return nil, errUnauthenticated
	}
	if key.Expired(time.Now()) {
		return nil, errUnauthenticated
	}
	user, err := s.store.GetUser(ctx, key.UserID)
	if err != nil || !user.IsActive {
		return nil, errUnauthenticated
	}

	keyID := key.ID
	go func() {
		touchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.TouchAPIKeyUsed(touchCtx, keyID, time.Now().UTC()); err != nil {
			log.Debug().Err(err).Msg("Failed to stamp API key use")
		}
	}()

	return user, nil
}

// requireRole rejects callers below the required level with 403.
func (s *Server) requireRole(required models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := currentUser(r)
			if user == nil || !user.Role.HasPermission(required) {
				respondError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger emits one structured line per request. The chi wrapper
// preserves http.Hijacker so the WebSocket upgrade keeps working.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("HTTP request")
	})
}
