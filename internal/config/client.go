package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// DefaultClientPath is where tripsync looks for its config file.
const DefaultClientPath = "~/.config/tripsync/config.toml"

const (
	defaultServerURL = "http://localhost:8080"
	defaultCachePath = "~/.cache/tripsync/cache.db"
)

// Client holds tripsync configuration and the persisted session.
type Client struct {
	ServerURL string `toml:"server_url"`
	CachePath string `toml:"cache_path"`
	LogLevel  string `toml:"log_level,omitempty"`

	UserID       string    `toml:"user_id,omitempty"`
	AccessToken  string    `toml:"access_token,omitempty"`
	RefreshToken string    `toml:"refresh_token,omitempty"`
	TokenExpiry  time.Time `toml:"token_expiry"`
}

// LoadClient parses the config file at path (DefaultClientPath when empty).
// A missing file yields the defaults.
func LoadClient(path string) (*Client, error) {
	resolved, err := resolveClientPath(path)
	if err != nil {
		return nil, err
	}

	cfg := &Client{}
	data, err := os.ReadFile(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.ServerURL = strings.TrimSuffix(strings.TrimSpace(cfg.ServerURL), "/")
	if cfg.ServerURL == "" {
		cfg.ServerURL = defaultServerURL
	}
	if strings.TrimSpace(cfg.CachePath) == "" {
		cfg.CachePath = defaultCachePath
	}
	if cfg.CachePath != ":memory:" {
		if cfg.CachePath, err = expandPath(cfg.CachePath); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// SaveClient writes cfg to path (DefaultClientPath when empty). The file
// holds tokens, so it is created 0600 and replaced atomically.
func SaveClient(path string, cfg *Client) error {
	resolved, err := resolveClientPath(path)
	if err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp.Name(), resolved); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func resolveClientPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(DefaultClientPath)
	}
	return expandPath(path)
}
