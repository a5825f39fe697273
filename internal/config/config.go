// Package config provides configuration file and environment variable support for civita.
//
// Configuration priority (highest to lowest):
//  1. Command-line flags
//  2. Environment variables (CIVITA_*)
//  3. Config file (~/.civita/config.toml)
//  4. Built-in defaults
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the civita configuration.
type Config struct {
	// DB is the path to the database file.
	// Default: ~/.civita/civita.db
	DB string `toml:"db"`

	// Host is the address the HTTP server binds to.
	Host string `toml:"host"`

	// Port is the TCP port the HTTP server listens on.
	Port int `toml:"port"`

	// JWTSecret signs and verifies bearer tokens. Must be set in production.
	JWTSecret string `toml:"jwt_secret"`

	// JWTTTLMinutes is the access-token lifetime in minutes.
	JWTTTLMinutes int `toml:"jwt_ttl_minutes"`

	// CORSOrigins lists allowed CORS origins. Empty means same-origin only.
	CORSOrigins []string `toml:"cors_origins"`

	// DefaultCity is assumed for reports that carry no city.
	DefaultCity string `toml:"default_city"`

	// RateLimitMax is the number of requests allowed per bucket window.
	RateLimitMax int `toml:"rate_limit_max"`

	// RateLimitWindowSeconds is the bucket window size in seconds.
	RateLimitWindowSeconds int `toml:"rate_limit_window_seconds"`

	// StorageDir is where uploaded photos are written.
	// Default: ~/.civita/storage
	StorageDir string `toml:"storage_dir"`

	// StorageBaseURL prefixes issued photo URLs (e.g. a CDN endpoint).
	StorageBaseURL string `toml:"storage_base_url"`

	// SMS configures the outbound SMS notifier.
	SMS SMSConfig `toml:"sms"`

	// Backup configures automatic database backups.
	Backup BackupConfig `toml:"backup"`
}

// SMSConfig holds outbound SMS settings. Delivery is best-effort; a failure
// here never fails the operation that triggered it.
type SMSConfig struct {
	// Enabled turns outbound SMS on. When false the sender only logs.
	Enabled bool `toml:"enabled"`

	// SenderID is the alphanumeric sender shown to recipients.
	SenderID string `toml:"sender_id"`

	// APIKey authenticates against the SMS gateway.
	APIKey string `toml:"api_key"`

	// MaxRetries bounds delivery attempts per message.
	MaxRetries int `toml:"max_retries"`
}

// BackupConfig holds automatic backup settings.
type BackupConfig struct {
	// Enabled turns automatic backups on.
	Enabled bool `toml:"enabled"`

	// Path is the backup directory. Empty means alongside the database.
	Path string `toml:"path"`

	// Keep is the number of rotated backups to retain.
	Keep int `toml:"keep"`

	// MinIntervalMinutes skips a backup if the last one is newer than this.
	MinIntervalMinutes int `toml:"min_interval_minutes"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		DB:                     "", // Empty means use db.DefaultDBPath
		Host:                   "localhost",
		Port:                   8080,
		JWTTTLMinutes:          60,
		DefaultCity:            "Istanbul",
		RateLimitMax:           30,
		RateLimitWindowSeconds: 60,
		SMS: SMSConfig{
			MaxRetries: 3,
		},
		Backup: BackupConfig{
			Enabled:            true,
			Keep:               3,
			MinIntervalMinutes: 60,
		},
	}
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".civita", "config.toml")
}

// Load loads configuration from the config file and environment variables.
// Environment variables take precedence over file settings.
// Returns default config if the config file doesn't exist.
func Load() (*Config, error) {
	return LoadFromPath(DefaultConfigPath())
}

// LoadFromPath loads configuration from a specific file path.
// Environment variables take precedence over file settings.
// Returns default config if the config file doesn't exist.
func LoadFromPath(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if _, err := toml.DecodeFile(configPath, cfg); err != nil {
				return nil, err
			}
		}
		// If file doesn't exist, just continue with defaults
	}

	cfg.applyEnv()

	return cfg, nil
}

// applyEnv applies environment variable overrides to the config.
func (c *Config) applyEnv() {
	if db := os.Getenv("CIVITA_DB"); db != "" {
		c.DB = db
	}
	if host := os.Getenv("CIVITA_HOST"); host != "" {
		c.Host = host
	}
	if port := os.Getenv("CIVITA_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			c.Port = p
		}
	}
	if secret := os.Getenv("CIVITA_JWT_SECRET"); secret != "" {
		c.JWTSecret = secret
	}
	if ttl := os.Getenv("CIVITA_JWT_TTL_MINUTES"); ttl != "" {
		if m, err := strconv.Atoi(ttl); err == nil && m > 0 {
			c.JWTTTLMinutes = m
		}
	}
	if origins := os.Getenv("CIVITA_CORS_ORIGINS"); origins != "" {
		c.CORSOrigins = splitAndTrim(origins)
	}
	if city := os.Getenv("CIVITA_DEFAULT_CITY"); city != "" {
		c.DefaultCity = city
	}
	if max := os.Getenv("CIVITA_RATE_LIMIT_MAX"); max != "" {
		if n, err := strconv.Atoi(max); err == nil && n > 0 {
			c.RateLimitMax = n
		}
	}
	if window := os.Getenv("CIVITA_RATE_LIMIT_WINDOW_SECONDS"); window != "" {
		if n, err := strconv.Atoi(window); err == nil && n > 0 {
			c.RateLimitWindowSeconds = n
		}
	}
	if dir := os.Getenv("CIVITA_STORAGE_DIR"); dir != "" {
		c.StorageDir = dir
	}
	if base := os.Getenv("CIVITA_STORAGE_BASE_URL"); base != "" {
		c.StorageBaseURL = base
	}
	if _, ok := os.LookupEnv("CIVITA_SMS_ENABLED"); ok {
		c.SMS.Enabled = true
	}
	if sender := os.Getenv("CIVITA_SMS_SENDER_ID"); sender != "" {
		c.SMS.SenderID = sender
	}
	if key := os.Getenv("CIVITA_SMS_API_KEY"); key != "" {
		c.SMS.APIKey = key
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// GetDB returns the database path, using the default if not set.
func (c *Config) GetDB() string {
	if c.DB != "" {
		return c.DB
	}
	return "" // Return empty to signal use of db.DefaultDBPath
}

// Addr returns the host:port the server binds to.
func (c *Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// SampleConfig returns a sample configuration file content.
func SampleConfig() string {
	return `# Civita Configuration File
# Location: ~/.civita/config.toml
#
# Configuration priority (highest to lowest):
#   1. Command-line flags
#   2. Environment variables (CIVITA_*)
#   3. This config file
#   4. Built-in defaults

# Path to the database file
# Default: ~/.civita/civita.db
# Environment: CIVITA_DB
# db = "/path/to/civita.db"

# HTTP server bind address and port
# Environment: CIVITA_HOST, CIVITA_PORT
# host = "localhost"
# port = 8080

# Secret for signing bearer tokens. Required in production.
# Environment: CIVITA_JWT_SECRET
# jwt_secret = ""

# Access token lifetime in minutes
# Environment: CIVITA_JWT_TTL_MINUTES
# jwt_ttl_minutes = 60

# Allowed CORS origins (comma-separated in the environment)
# Environment: CIVITA_CORS_ORIGINS
# cors_origins = ["https://app.example.org"]

# City assumed for reports without one
# Environment: CIVITA_DEFAULT_CITY
# default_city = "Istanbul"

# Rate limit bucket: requests per window
# Environment: CIVITA_RATE_LIMIT_MAX, CIVITA_RATE_LIMIT_WINDOW_SECONDS
# rate_limit_max = 30
# rate_limit_window_seconds = 60

# Photo storage directory and public URL prefix
# Environment: CIVITA_STORAGE_DIR, CIVITA_STORAGE_BASE_URL
# storage_dir = "~/.civita/storage"
# storage_base_url = "http://localhost:8080/storage"

[sms]
# Outbound SMS notifier. Failures are logged, never surfaced.
# Environment: CIVITA_SMS_ENABLED, CIVITA_SMS_SENDER_ID, CIVITA_SMS_API_KEY
# enabled = false
# sender_id = "CIVITA"
# api_key = ""
# max_retries = 3

[backup]
# Automatic database backups before serving
# enabled = true
# keep = 3
# min_interval_minutes = 60
# path = ""
`
}

// WriteConfigFile writes the sample config file to the specified path.
// Creates parent directories if needed.
func WriteConfigFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(SampleConfig()), 0644)
}
