package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("PORT", "")
	t.Setenv("PUBLIC_BASE_URL", "")
	t.Setenv("GITHUB_CALLBACK_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.PublicBaseURL)
	assert.Equal(t, "http://localhost:8080/auth/github/callback", cfg.GitHubCallbackURL)
	assert.Equal(t, time.Duration(0), cfg.AccessTokenTTL)
	assert.False(t, cfg.AuthEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("PORT", "9090")
	t.Setenv("PUBLIC_BASE_URL", "https://trips.example/")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GITHUB_CLIENT_ID", "id")
	t.Setenv("GITHUB_CLIENT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "https://trips.example", cfg.PublicBaseURL)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.AuthEnabled())
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("bad port", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "0123456789abcdef0123")
		t.Setenv("PORT", "eighty")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("bad ttl", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "0123456789abcdef0123")
		t.Setenv("PORT", "")
		t.Setenv("REFRESH_TOKEN_TTL", "a month")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestLoadClient_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadClient(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.True(t, filepath.IsAbs(cfg.CachePath))
}

func TestClient_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tripsync", "config.toml")
	expiry := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	err := SaveClient(path, &Client{
		ServerURL:    "https://trips.example/",
		CachePath:    ":memory:",
		UserID:       "user-1",
		AccessToken:  "access",
		RefreshToken: "sess.secret",
		TokenExpiry:  expiry,
	})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// A lost expiry would force a refresh on every start.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "token_expiry")

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "https://trips.example", cfg.ServerURL)
	assert.Equal(t, ":memory:", cfg.CachePath)
	assert.Equal(t, "sess.secret", cfg.RefreshToken)
	assert.True(t, expiry.Equal(cfg.TokenExpiry))
}

func TestLoadClient_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("server_url = ["), 0o600))
	_, err := LoadClient(path)
	assert.Error(t, err)
}
