// Package api serves the REST control plane under /api/v1, plus the
// webhook ingest mount, the WebSocket endpoint, and Prometheus metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/auth"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/engine"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/ingest/poll"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/ingest/webhook"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/registry"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/websocket"
)

// Store is the persistence surface the handlers use. *store.Store satisfies
// it; tests substitute an in-memory fake.
type Store interface {
	Ping(ctx context.Context) error

	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	InsertUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	ListTargets(ctx context.Context) ([]*models.Target, error)
	GetTarget(ctx context.Context, id uuid.UUID) (*models.Target, error)
	InsertTarget(ctx context.Context, t *models.Target) error
	UpdateTarget(ctx context.Context, t *models.Target) error
	DeleteTarget(ctx context.Context, id uuid.UUID) error

	ListAPIKeys(ctx context.Context, userID *uuid.UUID) ([]*models.APIKey, error)
	InsertAPIKey(ctx context.Context, k *models.APIKey) error
	GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error)
	TouchAPIKeyUsed(ctx context.Context, id uuid.UUID, at time.Time) error

	ListAddons(ctx context.Context, enabledOnly bool) ([]*models.Addon, error)
	GetAddon(ctx context.Context, id string) (*models.Addon, error)
}

// AuditLog records and lists administrative actions. *audit.Logger
// satisfies it.
type AuditLog interface {
	Record(userID *uuid.UUID, action, details string)
	List(ctx context.Context, limit, offset int) ([]*models.AuditEvent, error)
}

// Server wires the HTTP surface to the rest of the system.
type Server struct {
	store     Store
	engine    *engine.Engine
	registry  *registry.Registry
	issuer    *auth.Issuer
	audit     AuditLog
	hub       *websocket.Hub
	scheduler *poll.Scheduler
	webhooks  *webhook.Handler

	passwordSalt   string
	version        string
	allowedOrigins []string
	started        time.Time
}

// Config carries the server's collaborators.
type Config struct {
	Store          Store
	Engine         *engine.Engine
	Registry       *registry.Registry
	Issuer         *auth.Issuer
	Audit          AuditLog
	Hub            *websocket.Hub
	Scheduler      *poll.Scheduler
	Webhooks       *webhook.Handler
	PasswordSalt   string
	Version        string
	AllowedOrigins []string
}

// NewServer builds the HTTP server facade.
func NewServer(cfg Config) *Server {
	return &Server{
		store:          cfg.Store,
		engine:         cfg.Engine,
		registry:       cfg.Registry,
		issuer:         cfg.Issuer,
		audit:          cfg.Audit,
		hub:            cfg.Hub,
		scheduler:      cfg.Scheduler,
		webhooks:       cfg.Webhooks,
		passwordSalt:   cfg.PasswordSalt,
		version:        cfg.Version,
		allowedOrigins: cfg.AllowedOrigins,
		started:        time.Now(),
	}
}

// Router assembles the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := s.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Method(http.MethodPost, "/webhooks/{path}", s.webhooks)
	r.Get("/socket.io", s.hub.HandleWebSocket)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/auth/me", s.handleMe)
			r.Get("/stats", s.handleStats)

			r.Route("/alerts", func(r chi.Router) {
				r.Get("/", s.handleListAlerts)
				r.Get("/stats", s.handleAlertStats)
				r.Get("/{id}", s.handleGetAlert)
				r.With(s.requireRole(roleOperator)).Post("/{id}/acknowledge", s.handleAcknowledgeAlert)
				r.With(s.requireRole(roleOperator)).Post("/{id}/resolve", s.handleResolveAlert)
				r.With(s.requireRole(roleAdmin)).Delete("/{id}", s.handleDeleteAlert)
			})

			r.Route("/targets", func(r chi.Router) {
				r.Get("/", s.handleListTargets)
				r.Get("/{id}", s.handleGetTarget)
				r.With(s.requireRole(roleOperator)).Post("/", s.handleCreateTarget)
				r.With(s.requireRole(roleOperator)).Put("/{id}", s.handleUpdateTarget)
				r.With(s.requireRole(roleOperator)).Post("/{id}/poll", s.handlePollTarget)
				r.With(s.requireRole(roleAdmin)).Delete("/{id}", s.handleDeleteTarget)
			})

			r.Route("/users", func(r chi.Router) {
				r.Use(s.requireRole(roleAdmin))
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)
				r.Get("/{id}", s.handleGetUser)
				r.Put("/{id}", s.handleUpdateUser)
				r.Delete("/{id}", s.handleDeleteUser)
			})

			r.Route("/api-keys", func(r chi.Router) {
				r.Get("/", s.handleListAPIKeys)
				r.Post("/", s.handleCreateAPIKey)
			})

			r.Route("/addons", func(r chi.Router) {
				r.Get("/", s.handleListAddons)
				r.Get("/{id}", s.handleGetAddon)
				r.With(s.requireRole(roleAdmin)).Post("/", s.handleInstallAddon)
				r.With(s.requireRole(roleAdmin)).Delete("/{id}", s.handleUninstallAddon)
				r.With(s.requireRole(roleAdmin)).Post("/{id}/enable", s.handleEnableAddon)
				r.With(s.requireRole(roleAdmin)).Post("/{id}/disable", s.handleDisableAddon)
			})

			r.With(s.requireRole(roleAdmin)).Get("/audit", s.handleListAudit)
		})
	})

	return r
}
