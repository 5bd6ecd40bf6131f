package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chanmux/chanmux/internal/config"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Parallel()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, config.DefaultHTTPAddr, cfg.Server.Addr)
	require.Equal(t, config.DefaultSyncCron, cfg.Sync.Cron)
	require.Equal(t, config.DefaultSyncWorkers, cfg.Sync.Workers)
	require.Equal(t, config.DefaultClaimTTL, cfg.Claims.SessionTTL)
	require.Equal(t, config.DefaultPGDatabase, cfg.Postgres.Database)
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[log]
level = "debug"
format = "json"

[server]
addr = ":9999"
base_url = "https://api.example.com"

[auth]
jwt_secret = "s3cret"
service_key = "svc-key"

[sync]
cron = "*/30 * * * *"
workers = 8

[claims]
session_ttl = "10m"

[meta]
app_id = "meta-app"
app_secret = "meta-secret"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, ":9999", cfg.Server.Addr)
	require.Equal(t, "https://api.example.com", cfg.Server.BaseURL)
	require.Equal(t, "*/30 * * * *", cfg.Sync.Cron)
	require.Equal(t, 8, cfg.Sync.Workers)
	require.Equal(t, "10m", cfg.Claims.SessionTTL)
	require.Equal(t, "meta-app", cfg.Meta.AppID)

	// defaults survive partial files
	require.Equal(t, config.DefaultPGHost, cfg.Postgres.Host)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)
}
