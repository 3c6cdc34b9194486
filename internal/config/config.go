package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL        = "http://localhost:8000"
	DefaultWebPort       = 8080
	DefaultQuietInterval = 500 * time.Millisecond
	DefaultPollInterval  = 2 * time.Second
	DefaultDays          = 7
)

// Config is stored as JSON in the user config dir. Environment variables
// override the file; command-line flags override both.
type Config struct {
	APIURL        string        `json:"api_url" env:"LAZYDASH_API_URL"`
	WebEnabled    bool          `json:"web_enabled" env:"LAZYDASH_WEB"`
	WebPort       int           `json:"web_port" env:"LAZYDASH_WEB_PORT"`
	LogPath       string        `json:"log_path" env:"LAZYDASH_LOG_PATH"`
	QuietInterval time.Duration `json:"quiet_interval" env:"LAZYDASH_QUIET_INTERVAL"`
	PollInterval  time.Duration `json:"poll_interval" env:"LAZYDASH_POLL_INTERVAL"`
	DefaultDays   int           `json:"default_days" env:"LAZYDASH_DEFAULT_DAYS"`
}

func Default() Config {
	return Config{
		APIURL:        DefaultAPIURL,
		WebPort:       DefaultWebPort,
		QuietInterval: DefaultQuietInterval,
		PollInterval:  DefaultPollInterval,
		DefaultDays:   DefaultDays,
	}
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "lazydash", "config.json"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

func Load(path string) (Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return Config{}, err
	}

	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return config, nil
}

// LoadEnv overlays environment variables (and a .env file in the working
// directory, when present) onto cfg.
func LoadEnv(cfg Config) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Sanitize restores defaults for values that cannot be used as-is.
func (c *Config) Sanitize() {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.WebPort <= 0 || c.WebPort > 65535 {
		c.WebPort = DefaultWebPort
	}
	if c.QuietInterval <= 0 {
		c.QuietInterval = DefaultQuietInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.DefaultDays < 1 {
		c.DefaultDays = DefaultDays
	}
	if c.DefaultDays > 90 {
		c.DefaultDays = 90
	}
}

func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
