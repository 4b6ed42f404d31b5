package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pbgateway "github.com/yuanzhaoK/admin-platform-sub000"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POCKETBASE_ADMIN_PASSWORD", "s3cret")

	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPocketBaseURL, cfg.PocketBase.URL)
	assert.Equal(t, "admin@example.com", cfg.PocketBase.AdminEmail)
	assert.Equal(t, "s3cret", cfg.PocketBase.AdminPassword)
	assert.Equal(t, 3, cfg.Gateway.AuthAttempts)
	assert.Equal(t, time.Second, cfg.Gateway.AuthRetryDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.Gateway.QueueSpacing)
	assert.Equal(t, time.Minute, cfg.Gateway.HealthInterval)
	assert.Equal(t, 30*time.Second, cfg.Gateway.RequestTimeout)
	assert.Equal(t, ":9100", cfg.Ops.Addr)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("POCKETBASE_URL", "https://pb.example.com")
	t.Setenv("POCKETBASE_ADMIN_EMAIL", "ops@example.com")
	t.Setenv("PB_GATEWAY_POCKETBASE_ADMIN_PASSWORD", "from-prefix")
	t.Setenv("PB_GATEWAY_GATEWAY_AUTH_ATTEMPTS", "5")
	t.Setenv("PB_GATEWAY_GATEWAY_QUEUE_SPACING", "50ms")
	t.Setenv("PB_GATEWAY_REDIS_ADDR", "localhost:6379")

	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, "https://pb.example.com", cfg.PocketBase.URL)
	assert.Equal(t, "ops@example.com", cfg.PocketBase.AdminEmail)
	assert.Equal(t, "from-prefix", cfg.PocketBase.AdminPassword)
	assert.Equal(t, 5, cfg.Gateway.AuthAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Gateway.QueueSpacing)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "pbgateway:status", cfg.Redis.Channel)

	client := cfg.ClientConfig()
	assert.Equal(t, "https://pb.example.com", client.URL)
	assert.Equal(t, "ops@example.com", client.Identity)
	assert.Equal(t, 5, client.AuthAttempts)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pocketbase:
  url: http://pb.internal:8090
  admin_password: from-file
gateway:
  health_interval: 15s
log:
  level: debug
`), 0o600))

	t.Setenv(ConfigFileEnv, path)
	t.Setenv("POCKETBASE_URL", "http://override:8090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://override:8090", cfg.PocketBase.URL, "environment wins over the file")
	assert.Equal(t, "from-file", cfg.PocketBase.AdminPassword)
	assert.Equal(t, 15*time.Second, cfg.Gateway.HealthInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file error")
}

func TestValidate(t *testing.T) {
	t.Setenv("POCKETBASE_URL", "ftp://pb")
	t.Setenv("PB_GATEWAY_GATEWAY_AUTH_ATTEMPTS", "0")

	_, err := LoadFrom("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pocketbase.url must be an http(s) URL")
	assert.Contains(t, err.Error(), "gateway.auth_attempts must be at least 1")
	assert.Contains(t, err.Error(), "pocketbase.admin_password is required")
}

func TestValidateRejectsZeroDurations(t *testing.T) {
	t.Setenv("POCKETBASE_ADMIN_PASSWORD", "s3cret")
	t.Setenv("PB_GATEWAY_GATEWAY_QUEUE_SPACING", "0s")
	t.Setenv("PB_GATEWAY_GATEWAY_AUTH_RETRY_DELAY", "0s")

	_, err := LoadFrom("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway.queue_spacing must be positive, got 0s")
	assert.Contains(t, err.Error(), "gateway.auth_retry_delay must be positive, got 0s")
}

func TestLoadedSettingsReachTheClient(t *testing.T) {
	t.Setenv("POCKETBASE_ADMIN_PASSWORD", "s3cret")
	t.Setenv("PB_GATEWAY_GATEWAY_QUEUE_SPACING", "30ms")
	t.Setenv("PB_GATEWAY_GATEWAY_AUTH_RETRY_DELAY", "250ms")
	t.Setenv("PB_GATEWAY_GATEWAY_HEALTH_INTERVAL", "1h")

	cfg, err := LoadFrom("")
	require.NoError(t, err)

	client, err := pbgateway.New(cfg.ClientConfig())
	require.NoError(t, err)
	defer client.Close()

	effective := client.Config()
	assert.Equal(t, 30*time.Millisecond, effective.QueueSpacing)
	assert.Equal(t, 250*time.Millisecond, effective.AuthRetryDelay)
	assert.Equal(t, time.Hour, effective.HealthInterval)
	assert.Equal(t, cfg.Gateway.AuthAttempts, effective.AuthAttempts)
	assert.Equal(t, cfg.Gateway.RequestTimeout, effective.RequestTimeout)
	assert.Equal(t, cfg.PocketBase.AuthPath, effective.AuthPath)
}
