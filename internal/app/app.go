// Package app wires configuration into a running sync engine: the store
// chosen by driver, the sync service, the HTTP handler and the retention loop.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/erauner12/toolbridge-sync/internal/auth"
	"github.com/erauner12/toolbridge-sync/internal/blob"
	"github.com/erauner12/toolbridge-sync/internal/config"
	"github.com/erauner12/toolbridge-sync/internal/db"
	"github.com/erauner12/toolbridge-sync/internal/httpapi"
	"github.com/erauner12/toolbridge-sync/internal/service/syncservice"
	"github.com/erauner12/toolbridge-sync/internal/store"
	"github.com/erauner12/toolbridge-sync/internal/store/memstore"
	"github.com/erauner12/toolbridge-sync/internal/store/pgstore"
	"github.com/erauner12/toolbridge-sync/internal/store/sqlitestore"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// App owns the store and the service built on it.
type App struct {
	Config *config.Config
	Store  store.Store
	Sync   *syncservice.Service

	closeFn func()
}

// New opens the configured store and builds the sync service.
// cfg must already be validated.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	st, closeFn, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var blobs blob.Source
	if cfg.BlobRoot != "" {
		blobs = blob.NewDir(cfg.BlobRoot)
	}

	return &App{
		Config:  cfg,
		Store:   st,
		Sync:    syncservice.New(st, blobs),
		closeFn: closeFn,
	}, nil
}

// OpenStore opens the repository selected by cfg.Store.Driver. The returned
// func releases it.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := db.Open(ctx, cfg.Store.DatabaseURL, db.PoolOptions{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		return pgstore.New(pool), pool.Close, nil

	case config.DriverSQLite:
		st, err := sqlitestore.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {
			if err := st.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close sqlite store")
			}
		}, nil

	case config.DriverMemory:
		log.Warn().Msg("using in-memory store; data is lost on restart")
		return memstore.New(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.Store.Driver)
}

// Close releases the store.
func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// Ping reports whether the store is reachable.
func (a *App) Ping(ctx context.Context) error {
	if p, ok := a.Store.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Handler builds the HTTP API over the service.
func (a *App) Handler() http.Handler {
	srv := &httpapi.Server{
		Sync: a.Sync,
		RateLimitConfig: httpapi.RateLimitInfo{
			WindowSeconds: a.Config.RateLimit.WindowSeconds,
			MaxRequests:   a.Config.RateLimit.MaxRequests,
			Burst:         a.Config.RateLimit.Burst,
		},
		Ready: func(r *http.Request) error { return a.Ping(r.Context()) },
	}
	return srv.Routes(auth.JWTCfg{
		HS256Secret:       a.Config.Auth.HS256Secret,
		Issuer:            a.Config.Auth.Issuer,
		AcceptedAudiences: a.Config.Auth.Audiences,
		DevMode:           a.Config.Auth.DevMode,
	})
}

// RunRetention prunes once, then on every tick of the configured interval,
// until ctx is done. A zero interval disables the loop.
func (a *App) RunRetention(ctx context.Context) error {
	interval := time.Duration(a.Config.Retention.Interval)
	if interval <= 0 {
		log.Info().Msg("retention loop disabled")
		return nil
	}

	a.pruneOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.pruneOnce(ctx)
		}
	}
}

func (a *App) pruneOnce(ctx context.Context) {
	days := a.Config.Retention.Days
	n, err := a.Sync.PruneOldData(ctx, days)
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Int("days", days).Msg("retention prune failed")
		}
		return
	}
	log.Info().Int64("removed", n).Int("days", days).Msg("retention prune complete")
}
