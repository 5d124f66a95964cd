package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/erauner12/toolbridge-sync/internal/app"
	"github.com/erauner12/toolbridge-sync/internal/config"
	"github.com/erauner12/toolbridge-sync/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file (or SYNC_CONFIG)")
	addr := flag.String("addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	logCloser, err := logging.Setup(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure logging")
	}
	defer logCloser.Close()

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open store")
	}
	defer a.Close()

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      a.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Str("driver", cfg.Store.Driver).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return a.RunRetention(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		a.Close()
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
