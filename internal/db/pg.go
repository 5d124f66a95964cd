package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PoolOptions tunes the PostgreSQL connection pool
type PoolOptions struct {
	MaxConns int32
	MinConns int32
}

// DefaultPoolOptions mirrors the sizing used in production
var DefaultPoolOptions = PoolOptions{MaxConns: 20, MinConns: 2}

// Open creates a new PostgreSQL connection pool
func Open(ctx context.Context, url string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}

	// Connection pool configuration
	cfg.MaxConns = opts.MaxConns
	cfg.MinConns = opts.MinConns
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = DefaultPoolOptions.MaxConns
	}
	if cfg.MinConns < 0 || cfg.MinConns > cfg.MaxConns {
		cfg.MinConns = DefaultPoolOptions.MinConns
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().
		Int32("max_conns", cfg.MaxConns).
		Int32("min_conns", cfg.MinConns).
		Msg("postgres connection pool created")

	return pool, nil
}
