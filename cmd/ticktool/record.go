package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valterebelo/polymarket-crypto-tools/internal/config"
	"github.com/valterebelo/polymarket-crypto-tools/internal/database"
	"github.com/valterebelo/polymarket-crypto-tools/internal/gamma"
	"github.com/valterebelo/polymarket-crypto-tools/internal/metadata"
	"github.com/valterebelo/polymarket-crypto-tools/internal/model"
	"github.com/valterebelo/polymarket-crypto-tools/internal/recorder"
	"github.com/valterebelo/polymarket-crypto-tools/internal/store"
	"github.com/valterebelo/polymarket-crypto-tools/internal/stream"
	"github.com/valterebelo/polymarket-crypto-tools/internal/tracker"
	"github.com/valterebelo/polymarket-crypto-tools/internal/version"
)

const shutdownGrace = 30 * time.Second

func runRecord(args []string) int {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	configPath := fs.String("config", "configs/ticktool.yaml", "path to config file")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	fs.Parse(args)

	logger := newLogger(*verbose)
	logger.Info("starting recorder",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return 1
	}
	defer pool.Close()

	if err := store.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		return 1
	}
	st := store.New(pool, logger)

	gammaClient := gamma.NewClient(cfg.Gamma.BaseURL,
		gamma.WithTimeout(cfg.Gamma.Timeout),
		gamma.WithPageSize(cfg.Gamma.PageSize),
		gamma.WithRequestDelay(cfg.Gamma.RequestDelay),
		gamma.WithRetries(cfg.Gamma.MaxRetries),
		gamma.WithLogger(logger),
	)

	cacheCfg := metadata.Config{
		RefreshInterval: cfg.Metadata.RefreshInterval,
		MaxMarkets:      cfg.Tracker.MaxMarkets,
		HydrateLimit:    cfg.Metadata.HydrateConcurrency,
		IncludeClosed:   cfg.Tracker.IncludeClosed,
	}
	cache := metadata.New(cacheCfg, gammaClient, logger,
		metadata.WithPersist(func(ctx context.Context, markets []model.Market) error {
			return st.UpsertMarkets(ctx, markets)
		}),
	)
	if err := cache.Start(ctx); err != nil {
		logger.Error("failed to start metadata cache", "error", err)
		return 1
	}
	defer cache.Stop()

	streamCfg := stream.Config{
		URL:                cfg.Stream.URL,
		PingInterval:       cfg.Stream.PingInterval,
		StaleTimeout:       cfg.Stream.StaleTimeout,
		WriteTimeout:       cfg.Stream.WriteTimeout,
		ReconnectBaseDelay: cfg.Stream.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Stream.ReconnectMaxDelay,
		EventBuffer:        cfg.Stream.EventBuffer,
	}
	conn := stream.NewConn(streamCfg, logger)

	recCfg := recorder.Config{
		BatchSize:     cfg.Recorder.BatchSize,
		FlushInterval: cfg.Recorder.FlushInterval,
		BufferCap:     cfg.Recorder.BufferCap,
		WriteRetries:  cfg.Recorder.WriteRetries,
		RetryDelay:    cfg.Recorder.RetryBackoff,
	}
	rec := recorder.New(recCfg, conn.Events(), st, cache, logger)

	filter := metadata.Filter{
		MarketIDs:     cfg.Tracker.MarketIDs,
		Keywords:      cfg.Tracker.Keywords,
		MinVolume:     cfg.Tracker.MinVolume,
		IncludeClosed: cfg.Tracker.IncludeClosed,
	}
	trk := tracker.New(filter, cache, conn, logger)

	if err := rec.Start(ctx); err != nil {
		logger.Error("failed to start recorder", "error", err)
		return 1
	}
	if err := conn.Start(ctx); err != nil {
		logger.Error("failed to start stream", "error", err)
		return 1
	}
	if err := trk.Start(ctx); err != nil {
		logger.Error("failed to start tracker", "error", err)
		return 1
	}

	stopHealth := startHealthServer(cfg.Health.Port, pool, conn, rec, cache, logger)

	if latest, ok, err := st.LatestTradeTime(ctx, ""); err != nil {
		logger.Warn("failed to read latest recorded trade", "error", err)
	} else if ok {
		logger.Info("resuming after last recorded trade", "latest_event_ts", latest)
	}

	logger.Info("recording",
		"tracked_tokens", len(conn.Subscriptions()),
		"health_port", cfg.Health.Port,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	graceCtx, graceCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer graceCancel()

	trk.Stop()
	if err := conn.Shutdown(graceCtx); err != nil {
		logger.Warn("stream shutdown incomplete", "error", err)
	}
	if err := rec.Stop(graceCtx); err != nil {
		logger.Warn("recorder drain incomplete", "error", err)
	}
	stopHealth(graceCtx)

	stats := rec.Stats()
	logger.Info("recorder stopped",
		"inserted", stats.Inserted,
		"duplicates", stats.Duplicates,
		"integrity_errors", stats.IntegrityErrors,
	)
	return 0
}
