package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Load loads configuration from a file path and applies environment variable overrides
// Validation is deferred to allow CLI flag overrides to be applied first
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		configPath = os.Getenv("SYNC_CONFIG")
	}

	if configPath != "" {
		if err := loadFromFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := applyEnvironmentOverrides(cfg); err != nil {
		return nil, err
	}

	// Note: Validation is NOT performed here to allow CLI flags to override
	// Call cfg.Validate() after applying CLI overrides in the caller

	return cfg, nil
}

// loadFromFile overlays a JSON file onto cfg; absent keys keep their defaults
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrConfigFileNotFound
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfigFormat, err)
	}
	return nil
}

func envBool(v string) bool {
	return v == "true" || v == "1"
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// applyEnvironmentOverrides applies configuration from environment variables
func applyEnvironmentOverrides(cfg *Config) error {
	if v := os.Getenv("ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}

	// Store
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.DatabaseURL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}

	// Auth
	if v := os.Getenv("JWT_HS256_SECRET"); v != "" {
		cfg.Auth.HS256Secret = v
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.Auth.Issuer = v
	}
	if v := os.Getenv("JWT_AUDIENCES"); v != "" {
		cfg.Auth.Audiences = splitList(v)
	}
	if v := os.Getenv("DEV_MODE"); v != "" {
		cfg.Auth.DevMode = envBool(v)
	}

	// Logging
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}

	if v := os.Getenv("BLOB_ROOT"); v != "" {
		cfg.BlobRoot = v
	}

	// Retention
	if err := envInt("RETENTION_DAYS", &cfg.Retention.Days); err != nil {
		return err
	}
	if v := os.Getenv("RETENTION_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RETENTION_INTERVAL: %w", err)
		}
		cfg.Retention.Interval = Duration(d)
	}

	// Rate limiting
	for key, dst := range map[string]*int{
		"RATE_LIMIT_WINDOW_SECONDS": &cfg.RateLimit.WindowSeconds,
		"RATE_LIMIT_MAX_REQUESTS":   &cfg.RateLimit.MaxRequests,
		"RATE_LIMIT_BURST":          &cfg.RateLimit.Burst,
	} {
		if err := envInt(key, dst); err != nil {
			return err
		}
	}

	return nil
}

// splitList splits a comma-separated list, dropping blanks
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
