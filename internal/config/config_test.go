package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToml = `
[development]
port = 8080
log_level = "trace"
files_root_path = "/tmp/portfolio-files"
login_rate_limit_window = "10m"
allowed_origins = ["http://localhost:3000"]

[production]
host = "0.0.0.0"
port = 9000
auth_provider = "remote"
remote_auth_url = "https://auth.example.com"
login_rate_limit_store = "redis"
files_root_path = "/var/portfolio/files"

[test]
auth_provider = "carrier-pigeon"
files_root_path = "/tmp"
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(testToml), 0o600))
	return path
}

func TestLoad_Development(t *testing.T) {
	cfg, err := Load("dev", writeTestConfig(t))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.Equal(t, AuthProviderLocal, cfg.AuthProvider)
	assert.Equal(t, LimiterStoreMemory, cfg.LoginRateLimitStore)
	assert.Equal(t, 5, cfg.LoginRateLimitLimit)
	assert.Equal(t, 10*time.Minute, cfg.LoginRateLimitWindow.Duration)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL.Duration)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
}

func TestLoad_Production(t *testing.T) {
	cfg, err := Load("production", writeTestConfig(t))
	require.NoError(t, err)

	assert.Equal(t, AuthProviderRemote, cfg.AuthProvider)
	assert.Equal(t, "https://auth.example.com", cfg.RemoteAuthURL)
	assert.Equal(t, LimiterStoreRedis, cfg.LoginRateLimitStore)
	assert.Equal(t, 15*time.Minute, cfg.LoginRateLimitWindow.Duration)
}

func TestLoad_Errors(t *testing.T) {
	path := writeTestConfig(t)

	_, err := Load("staging", path)
	assert.EqualError(t, err, "unknown env: staging")

	_, err = Load("test", path)
	assert.EqualError(t, err, "unknown auth provider: carrier-pigeon")

	_, err = Load("dev", filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1h30m")))
	assert.Equal(t, 90*time.Minute, d.Duration)
	assert.Error(t, d.UnmarshalText([]byte("forever")))
}
