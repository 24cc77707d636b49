package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfig_ParseFromEnv(t *testing.T) {
	t.Setenv("APP_URL", "https://app.example.com/")
	t.Setenv("IDENTITY_BASE_URL", "https://auth.example.com/")
	t.Setenv("IDENTITY_API_KEY", "  key-123  ")
	t.Setenv("IDENTITY_TIMEOUT", "5s")
	t.Setenv("STORAGE_DRIVER", "redis")
	t.Setenv("STORAGE_REDIS_ADDR", "redis.internal:6380")

	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.Equal(t, "https://app.example.com", cfg.AppURL)
	assert.Equal(t, "https://auth.example.com", cfg.Identity.BaseURL)
	assert.Equal(t, "key-123", cfg.Identity.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Identity.Timeout)
	assert.Equal(t, StorageDriverRedis, cfg.Storage.Driver)
	assert.Equal(t, "redis.internal:6380", cfg.Storage.Redis.Addr)
}

func TestAppConfig_SanitizeDefaults(t *testing.T) {
	var cfg AppConfig
	cfg.Identity.Timeout = -1
	cfg.Sanitize()

	assert.Equal(t, 10*time.Second, cfg.Identity.Timeout)
	assert.Equal(t, StorageDriverBolt, cfg.Storage.Driver)
	assert.Equal(t, "sessionkit.db", cfg.Storage.BoltPath)
	assert.Equal(t, "sessionkit:", cfg.Storage.Redis.KeyPrefix)
}

func TestStorageDriver_UnmarshalText(t *testing.T) {
	var d StorageDriver
	require.NoError(t, d.UnmarshalText([]byte("POSTGRES")))
	assert.Equal(t, StorageDriverPostgres, d)

	assert.Error(t, d.UnmarshalText([]byte("sqlite")))
}

func TestAppConfig_DetectDevModeFromNodeEnv(t *testing.T) {
	t.Setenv("NODE_ENV", "development")

	var cfg AppConfig
	cfg.Sanitize()

	assert.True(t, cfg.IsDev)
}
