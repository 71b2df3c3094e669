// Package config loads settings for both binaries.
//
// The server reads environment variables (optionally seeded from a .env
// file). The tripsync client keeps a TOML file in the user's config
// directory, which it also writes back when tokens rotate.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server holds cmd/server configuration.
type Server struct {
	Port   int
	DBPath string

	JWTSecret          string
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	SecureCookies      bool

	MediaDir      string
	PublicBaseURL string

	AIEndpoint string
	AIAPIKey   string
	AIModel    string

	LogLevel slog.Level
}

const (
	defaultPort       = 8080
	defaultDBPath     = "data/trips.db"
	defaultMediaDir   = "data/media"
	defaultAIEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultAIModel    = "gpt-4o-mini"
)

// Load reads the server configuration from the environment.
//
// A .env file in the working directory is loaded first when present;
// variables already set in the environment win over it.
func Load() (*Server, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}

	cfg := &Server{
		DBPath:             getEnv("DB_PATH", defaultDBPath),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		MediaDir:           getEnv("MEDIA_DIR", defaultMediaDir),
		AIEndpoint:         getEnv("AI_ENDPOINT", defaultAIEndpoint),
		AIAPIKey:           os.Getenv("AI_API_KEY"),
		AIModel:            getEnv("AI_MODEL", defaultAIModel),
		LogLevel:           ParseLevel(os.Getenv("LOG_LEVEL")),
	}

	var err error
	if cfg.Port, err = intEnv("PORT", defaultPort); err != nil {
		return nil, err
	}
	if cfg.AccessTokenTTL, err = durationEnv("ACCESS_TOKEN_TTL"); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = durationEnv("REFRESH_TOKEN_TTL"); err != nil {
		return nil, err
	}
	if cfg.SecureCookies, err = boolEnv("SECURE_COOKIES"); err != nil {
		return nil, err
	}

	cfg.PublicBaseURL = strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")
	cfg.GitHubCallbackURL = getEnv("GITHUB_CALLBACK_URL", cfg.PublicBaseURL+"/auth/github/callback")

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET is required")
	}
	return cfg, nil
}

// AuthEnabled reports whether GitHub sign-in is configured.
func (c *Server) AuthEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Anything else means info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

// durationEnv parses a Go duration; unset means zero, which callers treat
// as "use the default".
func durationEnv(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("config: invalid %s %q", key, v)
	}
	return d, nil
}

func boolEnv(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
