package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"titleCountdown/internal/domain"
)

const (
	CredentialsFile = "config.json"
	TokenFile       = "access_token.json"
	SettingsFile    = "settings.yaml"

	DefaultControlAddr    = "127.0.0.1:8765"
	DefaultUpdateInterval = 60 * time.Second
	DefaultLoginTimeout   = 5 * time.Minute

	DefaultTwitchAPIBaseURL   = "https://api.twitch.tv/helix"
	DefaultTwitchAuthorizeURL = "https://id.twitch.tv/oauth2/authorize"
	DefaultTwitchTokenURL     = "https://id.twitch.tv/oauth2/token"
)

type Config struct {
	Dir             string
	CredentialsPath string
	TokenPath       string
	SettingsPath    string

	ControlAddr    string
	UpdateInterval time.Duration
	LoginTimeout   time.Duration
	Debug          bool

	TwitchAPIBaseURL   string
	TwitchAuthorizeURL string
	TwitchTokenURL     string
}

// Load reads process configuration from the environment, after merging an
// optional .env file. ENV_FILE points at an alternative env file.
func Load() (*Config, error) {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Overload(envFile); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	dir := strings.TrimSpace(os.Getenv("TITLE_COUNTDOWN_DIR"))
	if dir == "" {
		dir = executableDir()
	}

	cfg := &Config{
		ControlAddr:        DefaultControlAddr,
		UpdateInterval:     DefaultUpdateInterval,
		LoginTimeout:       DefaultLoginTimeout,
		TwitchAPIBaseURL:   envOr("TWITCH_API_BASE_URL", DefaultTwitchAPIBaseURL),
		TwitchAuthorizeURL: envOr("TWITCH_AUTHORIZE_URL", DefaultTwitchAuthorizeURL),
		TwitchTokenURL:     envOr("TWITCH_TOKEN_URL", DefaultTwitchTokenURL),
	}
	cfg.SetDir(dir)

	if addr, ok := os.LookupEnv("TITLE_COUNTDOWN_CONTROL_ADDR"); ok {
		cfg.ControlAddr = strings.TrimSpace(addr)
	}

	var err error
	if cfg.UpdateInterval, err = envDuration("TITLE_COUNTDOWN_UPDATE_INTERVAL", DefaultUpdateInterval); err != nil {
		return nil, err
	}
	if cfg.LoginTimeout, err = envDuration("TITLE_COUNTDOWN_LOGIN_TIMEOUT", DefaultLoginTimeout); err != nil {
		return nil, err
	}

	if raw := os.Getenv("TITLE_COUNTDOWN_DEBUG"); raw != "" {
		cfg.Debug, err = strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("config: TITLE_COUNTDOWN_DEBUG: %w", err)
		}
	}

	return cfg, nil
}

// SetDir points every file path at dir.
func (c *Config) SetDir(dir string) {
	c.Dir = dir
	c.CredentialsPath = filepath.Join(dir, CredentialsFile)
	c.TokenPath = filepath.Join(dir, TokenFile)
	c.SettingsPath = filepath.Join(dir, SettingsFile)
}

// LoadCredentials reads client_id and client_secret from path. Any error means
// the countdown must stay disabled; callers log it instead of failing.
func LoadCredentials(path string) (domain.Credentials, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Credentials{}, fmt.Errorf("config: %s not found, create it with client_id and client_secret: %w", path, domain.ErrCredentialsMissing)
		}
		return domain.Credentials{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var creds domain.Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return domain.Credentials{}, fmt.Errorf("config: %s is not valid JSON: %w", path, err)
	}

	creds.ClientID = strings.TrimSpace(creds.ClientID)
	creds.ClientSecret = strings.TrimSpace(creds.ClientSecret)
	if !creds.Complete() {
		return domain.Credentials{}, fmt.Errorf("config: %s lacks client_id or client_secret: %w", path, domain.ErrCredentialsMissing)
	}

	return creds, nil
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive, got %s", key, raw)
	}
	return d, nil
}
