package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, "data/streamtube.db", cfg.Database.Path)
	assert.Equal(t, 15, cfg.Auth.AccessTokenTTLMinutes)
	assert.Equal(t, 168, cfg.Auth.RefreshTokenTTLHours)
	assert.Equal(t, "media", cfg.Storage.KeyPrefix)
	assert.Empty(t, cfg.Auth.AccessTokenSecret)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STREAMTUBE_SERVER_ADDR", "127.0.0.1:9999")
	t.Setenv("STREAMTUBE_AUTH_ACCESSTOKENSECRET", "s3cret")
	t.Setenv("STREAMTUBE_AUTH_ACCESSTOKENTTLMINUTES", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	assert.Equal(t, "s3cret", cfg.Auth.AccessTokenSecret)
	assert.Equal(t, 5, cfg.Auth.AccessTokenTTLMinutes)
}
