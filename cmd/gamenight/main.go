// Command gamenight runs the Game Night backend: cached BoardGameGeek
// aggregation views plus the quick-filter CRUD API.
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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/outstandingcode/gamenight/internal/bgg"
	"github.com/outstandingcode/gamenight/internal/cache"
	"github.com/outstandingcode/gamenight/internal/config"
	"github.com/outstandingcode/gamenight/internal/dedupe"
	"github.com/outstandingcode/gamenight/internal/filters"
	"github.com/outstandingcode/gamenight/internal/httpapi"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg.Debug)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		// The pool reconnects lazily; filter routes fail until it does.
		logger.Warn().Err(err).Msg("database not reachable at startup")
	}

	manager := cache.NewManager(cache.ManagerOptions{
		Addr:          cfg.Redis.Addr,
		Enabled:       cfg.Redis.Enabled,
		MaxReconnects: cfg.Redis.MaxReconnects,
		InitialDelay:  cfg.Redis.ReconnectDelay,
		ErrorDebounce: cfg.Redis.ErrorDebounce,
		Wrap: func(b cache.Backend) cache.Backend {
			if cfg.Cache.ErrorRate > 0 {
				b = cache.NewErrorInjector(b, cfg.Cache.ErrorRate)
			}
			if cfg.Debug {
				b = cache.NewDebug(b, logger)
			}
			return b
		},
	}, logger)
	defer manager.Close()

	// The server starts serving immediately; the shared cache comes up in
	// the background and requests use the local fallback until it does.
	go func() {
		if err := manager.Connect(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("shared cache unavailable, continuing with local cache")
		}
	}()

	local := cache.NewLocal()
	defer local.Close()

	group, err := newDedupeGroup(cfg.Dedupe)
	if err != nil {
		return err
	}

	aside := cache.NewAside(manager, local, group, logger)

	client := bgg.NewClient(cfg.BGG.BaseURL, logger, bgg.WithMaxAttempts(cfg.BGG.MaxAttempts))
	agg := bgg.NewAggregator(client, logger)
	service := bgg.NewService(agg, aside, bgg.TTLs{
		Listing:  cfg.Cache.ListingTTL,
		Profile:  cfg.Cache.ProfileTTL,
		Trending: cfg.Cache.TrendingTTL,
		Top:      cfg.Cache.TopTTL,
	}, cfg.BGG.BrowseURL, logger)

	repo := filters.NewRepo(pool)

	server := httpapi.NewServer(service, repo, manager, httpapi.Options{
		ClientOrigin: cfg.ClientOrigin,
		SecretKey:    cfg.SecretKey,
		RateLimit:    cfg.RateLimit,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("shutdown did not complete cleanly")
	}

	client.LogStats()
	aside.LogStats()
	return nil
}

func newDedupeGroup(cfg config.Dedupe) (dedupe.Group, error) {
	switch cfg.Type {
	case "memory", "":
		return dedupe.NewMemory(), nil
	case "fslock", "fs":
		return dedupe.NewFlock(cfg.LockDir)
	case "noop":
		return dedupe.NewNoOp(), nil
	default:
		return nil, errors.New("unknown dedupe type: " + cfg.Type + " (supported: memory, fslock, noop)")
	}
}
