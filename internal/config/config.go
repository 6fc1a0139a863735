package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"strava-leaderboard/internal/store"
)

const dirName = ".strava-leaderboard"

// Config represents the application configuration
type Config struct {
	Strava        StravaConfig        `json:"strava"`
	Auth          AuthConfig          `json:"auth"`
	Leaderboard   LeaderboardConfig   `json:"leaderboard"`
	Storage       StorageConfig       `json:"storage"`
	Publish       PublishConfig       `json:"publish"`
	Observability ObservabilityConfig `json:"observability"`
}

// StravaConfig holds Strava API credentials
type StravaConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	// BaseURL overrides the API root, mostly for tests
	BaseURL string `json:"base_url,omitempty"`
}

// AuthConfig holds the authorization callback settings
type AuthConfig struct {
	RedirectURL    string `json:"redirect_url"`
	ListenAddr     string `json:"listen_addr"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	// StateSecret signs the OAuth state; the client secret is used when empty
	StateSecret string `json:"state_secret,omitempty"`
	// LeewaySeconds refreshes tokens this long before they expire
	LeewaySeconds int `json:"leeway_seconds"`
}

// LeaderboardConfig holds the cycle settings
type LeaderboardConfig struct {
	Since             string `json:"since"` // YYYY-MM-DD, local time
	IntervalMinutes   int    `json:"interval_minutes"`
	FailurePolicy     string `json:"failure_policy"` // omit or zero
	Concurrency       int    `json:"concurrency"`
	DetailConcurrency int    `json:"detail_concurrency"`
}

// StorageConfig selects the credential store
type StorageConfig struct {
	Backend       string `json:"backend"` // file, sqlite, postgres or redis
	Path          string `json:"path,omitempty"`
	DSN           string `json:"dsn,omitempty"`
	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`
	RedisKey      string `json:"redis_key,omitempty"`
	EncryptionKey string `json:"encryption_key,omitempty"`
}

// PublishConfig controls the RabbitMQ snapshot publisher
type PublishConfig struct {
	Enabled     bool   `json:"enabled"`
	RabbitMQURL string `json:"rabbitmq_url,omitempty"`
	Queue       string `json:"queue,omitempty"`
}

// ObservabilityConfig holds logging and error reporting settings
type ObservabilityConfig struct {
	LogFormat   string `json:"log_format"` // json or text
	SentryDSN   string `json:"sentry_dsn,omitempty"`
	Environment string `json:"environment,omitempty"`
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Auth: AuthConfig{
			RedirectURL:    "http://localhost:5000/authorized",
			ListenAddr:     ":5000",
			TimeoutSeconds: 300,
		},
		Leaderboard: LeaderboardConfig{
			Since:             "2025-06-01",
			IntervalMinutes:   180,
			FailurePolicy:     "omit",
			Concurrency:       1,
			DetailConcurrency: 1,
		},
		Storage: StorageConfig{
			Backend: store.BackendFile,
		},
		Observability: ObservabilityConfig{
			LogFormat:   "json",
			Environment: "production",
		},
	}
}

// Load reads the configuration from path, or ~/.strava-leaderboard/config.json
// when path is empty. A .env file in the working directory and the process
// environment override secrets from the file.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = getConfigPath(); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	_ = godotenv.Load()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides settings from environment variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"STRAVA_CLIENT_ID", &c.Strava.ClientID},
		{"STRAVA_CLIENT_SECRET", &c.Strava.ClientSecret},
		{"SENTRY_DSN", &c.Observability.SentryDSN},
		{"RABBITMQ_URL", &c.Publish.RabbitMQURL},
		{"DATABASE_URL", &c.Storage.DSN},
		{"REDIS_ADDR", &c.Storage.RedisAddr},
		{"REDIS_PASSWORD", &c.Storage.RedisPassword},
		{"LEADERBOARD_ENCRYPTION_KEY", &c.Storage.EncryptionKey},
		{"LEADERBOARD_STATE_SECRET", &c.Auth.StateSecret},
	}
	for _, s := range strs {
		if v, ok := lookup(s.name); ok && v != "" {
			*s.dst = v
		}
	}

	if v, ok := lookup("REDIS_DB"); ok && v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB must be a number, got %q", v)
		}
		c.Storage.RedisDB = db
	}
	return nil
}

// applyDefaults fills zero values; the file store path depends on the home directory
func (c *Config) applyDefaults() error {
	defaults := DefaultConfig()
	if c.Auth.RedirectURL == "" {
		c.Auth.RedirectURL = defaults.Auth.RedirectURL
	}
	if c.Auth.ListenAddr == "" {
		c.Auth.ListenAddr = defaults.Auth.ListenAddr
	}
	if c.Auth.TimeoutSeconds == 0 {
		c.Auth.TimeoutSeconds = defaults.Auth.TimeoutSeconds
	}
	if c.Leaderboard.Since == "" {
		c.Leaderboard.Since = defaults.Leaderboard.Since
	}
	if c.Leaderboard.IntervalMinutes == 0 {
		c.Leaderboard.IntervalMinutes = defaults.Leaderboard.IntervalMinutes
	}
	if c.Leaderboard.FailurePolicy == "" {
		c.Leaderboard.FailurePolicy = defaults.Leaderboard.FailurePolicy
	}
	if c.Leaderboard.Concurrency == 0 {
		c.Leaderboard.Concurrency = defaults.Leaderboard.Concurrency
	}
	if c.Leaderboard.DetailConcurrency == 0 {
		c.Leaderboard.DetailConcurrency = defaults.Leaderboard.DetailConcurrency
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
	if c.Observability.LogFormat == "" {
		c.Observability.LogFormat = defaults.Observability.LogFormat
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = defaults.Observability.Environment
	}

	if c.Storage.Path == "" && (c.Storage.Backend == store.BackendFile || c.Storage.Backend == store.BackendSQLite) {
		dir, err := GetConfigDir()
		if err != nil {
			return err
		}
		name := "users.json"
		if c.Storage.Backend == store.BackendSQLite {
			name = "leaderboard.db"
		}
		c.Storage.Path = filepath.Join(dir, name)
	}
	return nil
}

// Save writes the configuration to path, or the default location when empty
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		if path, err = getConfigPath(); err != nil {
			return err
		}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample creates an example config file if none exists
func CreateExample(path string) error {
	if path == "" {
		var err error
		if path, err = getConfigPath(); err != nil {
			return err
		}
	}

	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return nil // Config exists, don't overwrite
	}

	example := DefaultConfig()
	example.Strava = StravaConfig{
		ClientID:     "YOUR_CLIENT_ID",
		ClientSecret: "YOUR_CLIENT_SECRET",
	}
	return Save(&example, path)
}

// Validate checks if the config has required fields
func (c *Config) Validate() error {
	if c.Strava.ClientID == "" || c.Strava.ClientID == "YOUR_CLIENT_ID" {
		return errors.New("strava.client_id is required - get it from https://www.strava.com/settings/api")
	}
	if c.Strava.ClientSecret == "" || c.Strava.ClientSecret == "YOUR_CLIENT_SECRET" {
		return errors.New("strava.client_secret is required - get it from https://www.strava.com/settings/api")
	}

	if _, err := c.Leaderboard.SinceDate(); err != nil {
		return err
	}
	if c.Leaderboard.IntervalMinutes < 0 {
		return fmt.Errorf("leaderboard.interval_minutes must be positive, got %d", c.Leaderboard.IntervalMinutes)
	}
	if c.Leaderboard.Concurrency < 0 || c.Leaderboard.DetailConcurrency < 0 {
		return errors.New("leaderboard concurrency settings must not be negative")
	}
	switch c.Leaderboard.FailurePolicy {
	case "", "omit", "zero":
	default:
		return fmt.Errorf("leaderboard.failure_policy must be \"omit\" or \"zero\", got %q", c.Leaderboard.FailurePolicy)
	}

	if c.Auth.TimeoutSeconds < 0 || c.Auth.LeewaySeconds < 0 {
		return errors.New("auth timeout_seconds and leeway_seconds must not be negative")
	}

	switch c.Storage.Backend {
	case "", store.BackendFile, store.BackendSQLite:
	case store.BackendPostgres:
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn (or DATABASE_URL) is required for the postgres backend")
		}
	case store.BackendRedis:
		if c.Storage.RedisAddr == "" {
			return errors.New("storage.redis_addr (or REDIS_ADDR) is required for the redis backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of file, sqlite, postgres, redis; got %q", c.Storage.Backend)
	}
	if c.Storage.EncryptionKey != "" {
		if _, err := store.ParseKey(c.Storage.EncryptionKey); err != nil {
			return fmt.Errorf("storage.encryption_key: %w", err)
		}
	}

	if f := c.Observability.LogFormat; f != "" && f != "json" && f != "text" {
		return fmt.Errorf("observability.log_format must be \"json\" or \"text\", got %q", f)
	}

	return nil
}

// SinceDate parses the leaderboard start date as local midnight
func (c LeaderboardConfig) SinceDate() (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, c.Since, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("leaderboard.since must be YYYY-MM-DD, got %q", c.Since)
	}
	return t, nil
}

// Interval returns the sleep between cycles
func (c LeaderboardConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// Timeout returns how long to wait for a user to authorize
func (c AuthConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Leeway returns how early tokens are refreshed
func (c AuthConfig) Leeway() time.Duration {
	return time.Duration(c.LeewaySeconds) * time.Second
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}
