// Command connector runs the pump-cloud sync loop and its admin API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jackc/pgx/v5/pgxpool"

	"pumpsync/internal/admin"
	"pumpsync/internal/archive"
	"pumpsync/internal/cloud"
	"pumpsync/internal/config"
	"pumpsync/internal/dedup"
	"pumpsync/internal/handler"
	"pumpsync/internal/migrate"
	"pumpsync/internal/nightscout"
	"pumpsync/internal/processor"
	"pumpsync/internal/syncer"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, wires the pipeline, and runs the sync loop
// alongside the admin HTTP server until a signal arrives.
func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
	)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Dedup store: Postgres when a DSN is configured, in-memory otherwise.
	var store dedup.Store = dedup.NewCache(cfg.DedupWindow, cfg.DedupMaxSize)
	if cfg.DatabaseURI != "" {
		if err := migrate.Up(ctx, cfg.DatabaseURI); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURI)
		if err != nil {
			logger.Fatal("pgxpool.New", zap.Error(err))
		}
		defer pool.Close()
		store = dedup.NewPG(pool)
		logger.Info("using postgres dedup store")
	}

	// Vendor cloud
	vendor := cloud.NewClient(cfg.PumpServer, cfg.PumpUsername, cfg.PumpPassword)
	sessions := cloud.NewSessionProvider(vendor, cfg.SessionTTL, logger)

	// Downstream store
	ns := nightscout.NewClient(cfg.NightscoutURL, cfg.NightscoutSecret)
	if err := ns.Ping(ctx); err != nil {
		logger.Warn("nightscout unreachable at startup", zap.Error(err))
	}

	proc := processor.New(cfg.PumpSerial, store, handler.DefaultTable(), logger)

	orch := syncer.New(syncer.Config{
		Serial:      cfg.PumpSerial,
		Key:         archive.DeriveKey(cfg.PumpUsername, cfg.PumpSerial),
		Interval:    cfg.SyncInterval,
		Overlap:     cfg.FetchOverlap,
		BackoffBase: cfg.BackoffBase,
		BackoffMax:  cfg.BackoffMax,
		DedupWindow: cfg.DedupWindow,
	}, sessions, vendor, proc, ns, store, logger)

	// Admin HTTP surface
	srv := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: admin.New(orch, logger).Router(),
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("admin listening", zap.String("addr", cfg.AdminAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() { errCh <- orch.Run(ctx) }()

	// Wait for stop
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("connector error", zap.Error(err))
			shutdown(srv, logger)
			os.Exit(1)
		}
	}

	shutdown(srv, logger)
	logger.Info("shutdown complete")
}

func shutdown(srv *http.Server, logger *zap.Logger) {
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("admin shutdown", zap.Error(err))
	}
}
