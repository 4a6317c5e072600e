package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, dir, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0o600))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)

	require.Equal(t, "@every 60s", cfg.Fulfillment.InviteSchedule)
	require.Equal(t, "@every 60m", cfg.Fulfillment.ReapSchedule)
	require.Equal(t, "@every 2m", cfg.Fulfillment.SweepSchedule)
	require.Equal(t, 24*time.Hour, cfg.Fulfillment.InviteExpiry)
	require.Equal(t, 24*time.Hour, cfg.Fulfillment.CartIdleThreshold)

	require.Equal(t, 10, cfg.Referral.MaxDepth)
	require.Equal(t, 8, cfg.Referral.CodeLength)
	require.Equal(t, 30*time.Minute, cfg.Sessions.TTL)

	require.False(t, cfg.Telegram.Enabled)
	require.Equal(t, "https://api.telegram.org", cfg.Telegram.APIBase)

	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("STOREBOT_SERVER_PORT", "9191")
	t.Setenv("STOREBOT_DATABASE_DRIVER", "postgres")
	t.Setenv("STOREBOT_FULFILLMENT_CART_IDLE_THRESHOLD", "36h")
	t.Setenv("STOREBOT_SESSIONS_TTL", "45m")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 9191, cfg.Server.Port)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, 36*time.Hour, cfg.Fulfillment.CartIdleThreshold)
	require.Equal(t, 45*time.Minute, cfg.Sessions.TTL)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir, `
server:
  port: 7070
telegram:
  enabled: true
  token: "abc"
  channel_id: "@shop"
  timeout: 5s
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 7070, cfg.Server.Port)
	require.True(t, cfg.Telegram.Enabled)
	require.Equal(t, "@shop", cfg.Telegram.ChannelID)
	require.Equal(t, 5*time.Second, cfg.Telegram.Timeout)

	// Untouched keys keep their defaults.
	require.Equal(t, "@every 2m", cfg.Fulfillment.SweepSchedule)
}
