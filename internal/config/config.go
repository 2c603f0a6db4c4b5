// Package config loads the server configuration from YAML, falling back to
// defaults when the file is absent.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the emulator process.
type Config struct {
	// HostName is the name this server advertises to clients in service
	// location responses.
	HostName string `yaml:"host_name"`

	// HTTP server hosting the auth, content and download endpoints.
	HTTP HTTPConfig `yaml:"http"`

	// Match is the TCP presence service.
	Match MatchConfig `yaml:"match"`

	// Session token registry.
	Session SessionConfig `yaml:"session"`

	// Database selects and configures the durable store.
	Database DatabaseConfig `yaml:"database"`

	// Content is the add-on content directory served to clients.
	Content ContentConfig `yaml:"content"`

	// AllowRegistrationThroughLogin auto-registers well-formed unknown
	// user ids at login instead of rejecting them.
	AllowRegistrationThroughLogin bool `yaml:"allow_registration_through_login"`

	// AllowDreamOverwrite accepts uploads for players that are not awake.
	AllowDreamOverwrite bool `yaml:"allow_dream_overwrite"`

	// AllowVersionMismatch accepts uploads from a different game version
	// than the one on record.
	AllowVersionMismatch bool `yaml:"allow_version_mismatch"`

	// WakeResetsDreamContent clears a player's dream content once the
	// download is confirmed.
	WakeResetsDreamContent bool `yaml:"wake_resets_dream_content"`
}

// HTTPConfig holds the HTTP listener parameters.
type HTTPConfig struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
}

// Addr returns the listen address.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.BindAddress, c.Port)
}

// MatchConfig holds the TCP presence listener parameters.
type MatchConfig struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// ReadTimeout closes idle connections, in seconds.
	ReadTimeout int `yaml:"read_timeout"`
}

// Addr returns the listen address.
func (c MatchConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.BindAddress, c.Port)
}

// SessionConfig selects the session store backend.
type SessionConfig struct {
	// Backend is "memory" or "redis".
	Backend string `yaml:"backend"`

	// RedisURL is used when Backend is "redis".
	RedisURL string `yaml:"redis_url"`

	// TTL of issued tokens, in minutes.
	TTL int `yaml:"ttl"`
}

// DatabaseConfig selects and configures the durable store.
type DatabaseConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `yaml:"backend"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// ContentConfig points at the local add-on content tree.
type ContentConfig struct {
	Directory string `yaml:"directory"`
}

// Default returns a config with sensible defaults: memory backends and the
// ports the client firmware expects.
func Default() Config {
	return Config{
		HostName: "local",
		HTTP: HTTPConfig{
			BindAddress: "0.0.0.0",
			Port:        80,
		},
		Match: MatchConfig{
			BindAddress: "0.0.0.0",
			Port:        29900,
			ReadTimeout: 60,
		},
		Session: SessionConfig{
			Backend: "memory",
			TTL:     30,
		},
		Database: DatabaseConfig{
			Backend:  "memory",
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "dreamlink",
			Password: "dreamlink",
			DBName:   "dreamlink",
			SSLMode:  "disable",
		},
		Content: ContentConfig{
			Directory: "dlc",
		},
		AllowRegistrationThroughLogin: true,
		WakeResetsDreamContent:        true,
	}
}

// Load reads config from a YAML file. If the file doesn't exist, returns
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
