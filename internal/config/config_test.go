package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitializeDefaultConfig(t *testing.T) {
	cfg := InitializeDefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Realtime.Broker)
	assert.Equal(t, 600, cfg.Render.QRSize)
	assert.Equal(t, 24*time.Hour, cfg.Security.SessionTimeout)
	assert.Same(t, cfg, GetConfig())
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file::memory:")
	t.Setenv("JOBS_ENABLED", "false")
	t.Setenv("QR_PROVIDER", "local")
	t.Setenv("COOKIE_SECURE", "not-a-bool")

	cfg := defaults()
	applyEnv(cfg)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file::memory:", cfg.Database.DSN)
	assert.False(t, cfg.Jobs.Enabled)
	assert.Equal(t, "local", cfg.Render.QRProvider)
	assert.False(t, cfg.Security.CookieSecure)
}

func TestUpdateConfigAndLogConfig(t *testing.T) {
	InitializeDefaultConfig()
	UpdateConfig(func(c *Configuration) {
		c.Server.PublicOrigin = "https://swms.example.com"
	})
	assert.Equal(t, "https://swms.example.com", GetConfig().Server.PublicOrigin)

	// LogConfig must not mutate the live secret
	LogConfig(zap.NewNop())
	assert.Equal(t, "swms-manager-secret-key", GetConfig().Security.JWTSecret)
}
