package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "MOCK_PREFIX", "MAX_ENDPOINTS", "MAX_REQUEST_LOG", "DB_HOST", "ADMIN_JWT_SECRET", "APP_ENV"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Server.Port)
	assert.Equal(t, "/mock", cfg.Server.MockPrefix)
	assert.Equal(t, 100, cfg.Limits.MaxEndpoints)
	assert.Equal(t, 1000, cfg.Limits.MaxRequestLog)
	assert.Equal(t, 10*time.Second, cfg.Proxy.Timeout)
	assert.True(t, cfg.Proxy.AllowPrivate)
	assert.False(t, cfg.DB.Enabled())
	assert.False(t, cfg.Auth.Enabled())
	assert.Contains(t, cfg.Server.AllowedOrigins(), "http://127.0.0.1:5173")
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("MOCK_PREFIX", "stubs/")
	t.Setenv("MAX_ENDPOINTS", "2")
	t.Setenv("APP_ENV", "production")
	t.Setenv("CLIENT_URL", "https://playground.example.com")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "6543")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/stubs", cfg.Server.MockPrefix)
	assert.Equal(t, 2, cfg.Limits.MaxEndpoints)
	assert.Equal(t, []string{"https://playground.example.com"}, cfg.Server.AllowedOrigins())
	assert.True(t, cfg.DB.Enabled())
	assert.Contains(t, cfg.DB.DSN, "port=6543")
}

func TestLoadConfigInvalid(t *testing.T) {
	cases := map[string]string{
		"MAX_ENDPOINTS":       "lots",
		"PROXY_ALLOW_PRIVATE": "sometimes",
		"ADMIN_TOKEN_TTL":     "forever",
		"MOCK_PREFIX":         "/",
		"MAX_REQUEST_LOG":     "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
