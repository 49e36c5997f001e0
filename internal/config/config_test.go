package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "unit-test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.PGHost)
	assert.Equal(t, 5432, cfg.PGPort)
	assert.Equal(t, 162, cfg.TrapPort)
	assert.Equal(t, 5000, cfg.HTTPPort)
	assert.Equal(t, 20, cfg.PGPoolSize)
	assert.Equal(t, 200, cfg.PollWorkers)
	assert.Equal(t, time.Minute, cfg.PollTickInterval)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "unit-test-secret")
	t.Setenv("PG_HOST", "db.internal")
	t.Setenv("TRAP_PORT", "10162")
	t.Setenv("POLL_TICK_INTERVAL", "30s")
	t.Setenv("SHUTDOWN_TIMEOUT", "15")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.PGHost)
	assert.Equal(t, 10162, cfg.TrapPort)
	assert.Equal(t, 30*time.Second, cfg.PollTickInterval)
	// Plain integers are read as seconds.
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
}

func TestValidateRejectsBadPorts(t *testing.T) {
	cfg := &Config{JWTSecret: "s", PGDatabase: "d", PGUser: "u", HTTPPort: 70000, TrapPort: 162}
	assert.Error(t, cfg.Validate())

	cfg = &Config{JWTSecret: "s", PGDatabase: "d", PGUser: "u", HTTPPort: 5000, TrapPort: -1}
	assert.Error(t, cfg.Validate())
}

func TestDerivedAddresses(t *testing.T) {
	cfg := &Config{
		PGHost: "db", PGPort: 5432, PGDatabase: "ops", PGUser: "ops", PGPassword: "pw",
		BindHost: "0.0.0.0", TrapPort: 162, HTTPPort: 5000,
	}
	assert.Equal(t, "postgres://ops:pw@db:5432/ops?sslmode=disable", cfg.PostgresDSN())
	assert.Equal(t, "0.0.0.0:162", cfg.TrapAddr())
	assert.Equal(t, "0.0.0.0:5000", cfg.HTTPAddr())
}
