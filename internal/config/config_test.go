package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestMustLoadPath_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
http:
  cookie_secret: "secret"
auth:
  base_url: "http://auth.local"
`)

	cfg := MustLoadPath(path)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, 10*time.Second, cfg.Auth.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Session.IdentityTTL)
	assert.Equal(t, 30*time.Second, cfg.Session.ValidateCooldown)
	assert.Equal(t, time.Minute, cfg.Session.RefreshThreshold)
	assert.Equal(t, "/login", cfg.Routes.Login)
	assert.Equal(t, "/plan-dashboard", cfg.Routes.DefaultAfterOAuth)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, "gymweb", cfg.Storage.Namespace)
}

func TestMustLoadPath_ReadsFile(t *testing.T) {
	path := writeConfig(t, `
env: "prod"
http:
  port: "9000"
  cookie_secret: "secret"
auth:
  base_url: "http://auth.local"
  timeout: 3s
session:
  validate_on_navigate: true
storage:
  driver: "redis"
redis:
  redis_addr: "redis:6379"
  redis_db: 2
`)

	cfg := MustLoadPath(path)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "9000", cfg.HTTP.Port)
	assert.Equal(t, 3*time.Second, cfg.Auth.Timeout)
	assert.True(t, cfg.Session.ValidateOnNavigate)
	assert.Equal(t, StorageRedis, cfg.Storage.Driver)
	assert.Equal(t, "redis:6379", cfg.Redis.RedisAddr)
	assert.Equal(t, 2, cfg.Redis.RedisDB)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
}

func TestMustLoadPath_Panics(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing auth base url",
			body: "http:\n  cookie_secret: \"secret\"\n",
		},
		{
			name: "unknown storage driver",
			body: "http:\n  cookie_secret: \"s\"\nauth:\n  base_url: \"http://a\"\nstorage:\n  driver: \"bolt\"\n",
		},
		{
			name: "redis without address",
			body: "http:\n  cookie_secret: \"s\"\nauth:\n  base_url: \"http://a\"\nstorage:\n  driver: \"redis\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.body)
			assert.Panics(t, func() { MustLoadPath(path) })
		})
	}
}

func TestMustLoadPath_MissingFile(t *testing.T) {
	assert.Panics(t, func() { MustLoadPath(filepath.Join(t.TempDir(), "absent.yaml")) })
}
