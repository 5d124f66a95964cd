package config

import "errors"

var (
	// ErrMissingDatabaseURL indicates that the postgres driver has no connection string
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required for the postgres store")

	// ErrMissingSQLitePath indicates that the sqlite driver has no database path
	ErrMissingSQLitePath = errors.New("SQLITE_PATH is required for the sqlite store")

	// ErrUnknownDriver indicates an unsupported STORE_DRIVER
	ErrUnknownDriver = errors.New("unknown store driver")

	// ErrMissingHTTPAddr indicates that the listen address is empty
	ErrMissingHTTPAddr = errors.New("httpAddr is required")

	// ErrInsecureSecret indicates the default or empty JWT secret outside dev
	ErrInsecureSecret = errors.New("JWT_HS256_SECRET must be set outside dev")

	// ErrInvalidRetention indicates a retention horizon below one day or a negative interval
	ErrInvalidRetention = errors.New("retention days must be at least 1 and interval not negative")

	// ErrConfigFileNotFound indicates that the config file was not found
	ErrConfigFileNotFound = errors.New("configuration file not found")

	// ErrInvalidConfigFormat indicates that the config file has invalid JSON
	ErrInvalidConfigFormat = errors.New("invalid configuration file format")
)
