// Package config loads the sync server configuration: defaults, then an
// optional JSON file, then environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

const devSecret = "dev-secret-change-in-production"

// Config holds all configuration for the sync server
type Config struct {
	Env       string          `json:"env"` // "dev" enables console logging
	HTTPAddr  string          `json:"httpAddr"`
	Store     StoreConfig     `json:"store"`
	Auth      AuthConfig      `json:"auth"`
	Log       LogConfig       `json:"log"`
	BlobRoot  string          `json:"blobRoot"` // empty: signatures are always empty
	Retention RetentionConfig `json:"retention"`
	RateLimit RateLimitConfig `json:"rateLimit"`
}

// StoreConfig selects and configures the repository backend
type StoreConfig struct {
	Driver      string `json:"driver"`
	DatabaseURL string `json:"databaseUrl,omitempty"`
	SQLitePath  string `json:"sqlitePath,omitempty"`
	MaxConns    int32  `json:"maxConns,omitempty"`
	MinConns    int32  `json:"minConns,omitempty"`
}

// AuthConfig mirrors auth.JWTCfg
type AuthConfig struct {
	HS256Secret string   `json:"hs256Secret"`
	Issuer      string   `json:"issuer,omitempty"`
	Audiences   []string `json:"audiences,omitempty"`
	DevMode     bool     `json:"devMode"` // enables X-Debug-Sub header fallback
}

// LogConfig controls zerolog output and optional file rotation
type LogConfig struct {
	Level      string `json:"level"`
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"maxSizeMb,omitempty"`
	MaxBackups int    `json:"maxBackups,omitempty"`
	MaxAgeDays int    `json:"maxAgeDays,omitempty"`
}

// RetentionConfig drives the background prune loop
type RetentionConfig struct {
	Days     int      `json:"days"`
	Interval Duration `json:"interval"` // 0 disables the loop
}

// RateLimitConfig is the per-user token bucket
type RateLimitConfig struct {
	WindowSeconds int `json:"windowSeconds"`
	MaxRequests   int `json:"maxRequests"`
	Burst         int `json:"burst"`
}

// Duration is a time.Duration written as "90s" or "6h" in JSON
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"6h\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Env:      "dev",
		HTTPAddr: ":8081",
		Store: StoreConfig{
			Driver:     DriverPostgres,
			SQLitePath: "data/sync.db",
			MaxConns:   20,
			MinConns:   2,
		},
		Auth: AuthConfig{
			HS256Secret: devSecret,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Retention: RetentionConfig{
			Days:     30,
			Interval: Duration(6 * time.Hour),
		},
		RateLimit: RateLimitConfig{
			WindowSeconds: 60,
			MaxRequests:   600,
			Burst:         120,
		},
	}
}

// IsDev reports whether the server runs in the local development environment
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return ErrMissingSQLitePath
		}
	case DriverMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Store.Driver)
	}

	if c.HTTPAddr == "" {
		return ErrMissingHTTPAddr
	}

	if !c.Auth.DevMode && !c.IsDev() && (c.Auth.HS256Secret == "" || c.Auth.HS256Secret == devSecret) {
		return ErrInsecureSecret
	}

	if c.Retention.Days < 1 {
		return ErrInvalidRetention
	}
	if c.Retention.Interval < 0 {
		return ErrInvalidRetention
	}

	return nil
}
