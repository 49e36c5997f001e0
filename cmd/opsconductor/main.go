package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/api"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/auth"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/bus"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/config"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/engine"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/ingest/poll"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/ingest/trap"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/ingest/webhook"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/logging"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/registry"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/store"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/vault"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/websocket"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/pkg/audit"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "opsconductor",
	Short:   "OpsConductor - network operations alerting platform",
	Long:    `OpsConductor ingests SNMP traps, webhooks, and poll results through vendor addons and maintains a deduplicated alert store with a REST and WebSocket control plane`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("OpsConductor %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer() {
	logging.Init(logging.Config{Format: "auto", Level: "info"})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logging.Init(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel})

	log.Info().Str("version", Version).Msg("Starting OpsConductor")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage.
	st, err := store.New(ctx, cfg.PostgresDSN(), cfg.PGPoolSize)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Postgres")
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	if err := bootstrapAdmin(ctx, st, cfg.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("Failed to bootstrap admin user")
	}

	// Addon registry.
	reg := registry.New(st)
	if err := reg.Reload(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load addon registry")
	}
	log.Info().Int("enabled", len(reg.ListEnabled())).Msg("Addon registry loaded")

	// Event fan-out, with the optional Redis mirror.
	var external bus.External
	var redisChannel *bus.RedisChannel
	if cfg.RedisURL != "" {
		redisChannel, err = bus.NewRedisChannel(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		external = redisChannel
	}
	events := bus.New(external)
	if redisChannel != nil {
		go redisChannel.Run(ctx, events)
		defer redisChannel.Close()
	}

	// Alert engine.
	eng := engine.New(st, events)

	// Audit trail.
	auditLog := audit.NewLogger(st.Pool())
	defer auditLog.Close()

	// WebSocket hub, fed from the bus.
	origins := splitOrigins(cfg.AllowedOrigins)
	hub := websocket.NewHub(origins)
	go hub.Run(ctx)
	events.Subscribe(hub.BroadcastEvent)

	// Ingestors.
	receiver := trap.New(cfg.TrapAddr(), "", reg, eng)
	if err := receiver.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start trap receiver")
	}
	defer receiver.Stop()

	credVault := vault.New(st)
	scheduler := poll.NewScheduler(st, reg, eng, credVault, cfg.PollTickInterval, cfg.PollWorkers)
	go scheduler.Run(ctx)

	webhooks := webhook.NewHandler(reg, eng, cfg.PGPoolSize)

	// HTTP control plane.
	server := api.NewServer(api.Config{
		Store:          st,
		Engine:         eng,
		Registry:       reg,
		Issuer:         auth.NewIssuer(cfg.JWTSecret),
		Audit:          auditLog,
		Hub:            hub,
		Scheduler:      scheduler,
		Webhooks:       webhooks,
		PasswordSalt:   cfg.PasswordSalt,
		Version:        Version,
		AllowedOrigins: origins,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr()).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("OpsConductor stopped")
}

// bootstrapAdmin seeds the first admin account on an empty users table.
// The password comes from ADMIN_PASSWORD, or is generated and printed once.
func bootstrapAdmin(ctx context.Context, st *store.Store, adminPassword string) error {
	count, err := st.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	password := adminPassword
	generated := false
	if password == "" {
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			return err
		}
		password = hex.EncodeToString(buf)
		generated = true
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &models.User{
		ID:           uuid.New(),
		Username:     "admin",
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := st.InsertUser(ctx, admin); err != nil {
		return err
	}

	if generated {
		// Printed once on first boot; not written anywhere else.
		fmt.Printf("\nInitial admin password: %s\n\n", password)
		log.Warn().Msg("Generated initial admin password, change it after first login")
	} else {
		log.Info().Msg("Seeded admin user from ADMIN_PASSWORD")
	}
	return nil
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
