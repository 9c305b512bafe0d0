/*
main.go - Application entry point

PURPOSE:
  Starts the order sheet server: loads configuration, opens the store,
  wires replication, archiving and the retention scheduler, and serves the
  HTTP API until interrupted.

STARTUP SEQUENCE:
  1. Load .env and environment, validate
  2. Configure logging
  3. Open the store (sqlite, postgres or memory)
  4. Connect RabbitMQ and S3 when configured
  5. Open the sheet (load, migrate, save repairs)
  6. Run HTTP server, replica subscriber and scheduler in one errgroup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM the group context is cancelled:
  1. Stop accepting new connections, wait for active requests (30s)
  2. Stop the subscriber and the scheduler
  3. Close broker and database connections

ENVIRONMENT:
  See config/config.go. PORT, STORE_DRIVER, SQLITE_PATH, DATABASE_URL,
  AMQP_URL, AMQP_EXCHANGE, S3_BUCKET, AWS_REGION, SHEET_SECRET_HASH,
  SHEET_TIMEZONE, SHEET_SPECIAL_HOLDER, RETENTION_INTERVAL, LOG_LEVEL.

SEE ALSO:
  - api/server.go: Router configuration
  - sheet/sheet.go: Service
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/warp/order-sheet/api"
	"github.com/warp/order-sheet/archive"
	"github.com/warp/order-sheet/config"
	"github.com/warp/order-sheet/holiday"
	"github.com/warp/order-sheet/logging"
	"github.com/warp/order-sheet/replica"
	"github.com/warp/order-sheet/sheet"
	"github.com/warp/order-sheet/store"
	"github.com/warp/order-sheet/store/postgres"
	"github.com/warp/order-sheet/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store
	persister, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := sheet.Options{
		Calendar:      holiday.New(),
		Location:      loc,
		SpecialHolder: cfg.SpecialHolder,
		Metrics:       sheet.NewMetrics(reg),
	}

	// Replication
	var replicaClient *replica.Client
	if cfg.AMQPURL != "" {
		replicaClient, err = replica.Dial(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return fmt.Errorf("connect replication: %w", err)
		}
		defer replicaClient.Close()
		opts.Replicator = replicaClient
		slog.Info("replication enabled", "exchange", cfg.AMQPExchange)
	} else {
		slog.Info("replication disabled - no AMQP_URL provided")
	}

	// Archive
	if cfg.S3Bucket != "" {
		archiver, err := archive.New(ctx, cfg.AWSRegion, cfg.S3Bucket)
		if err != nil {
			return fmt.Errorf("configure archive: %w", err)
		}
		opts.Archiver = archiver
		slog.Info("archive enabled", "bucket", cfg.S3Bucket, "region", cfg.AWSRegion)
	}

	svc := sheet.New(persister, opts)
	if err := svc.Open(ctx); err != nil {
		return fmt.Errorf("open sheet: %w", err)
	}

	if cfg.SecretHash == "" {
		slog.Warn("SHEET_SECRET_HASH is empty - the sheet is reachable under any secret path")
	}

	handler := api.NewHandler(svc, holiday.New())
	if pinger, ok := persister.(api.Pinger); ok {
		handler.Store = pinger
	}
	router := api.NewRouter(handler, api.RouterOptions{
		SecretHash: cfg.SecretHash,
		StaticDir:  cfg.StaticDir,
		Registry:   reg,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server starting", "addr", server.Addr, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if replicaClient != nil {
		g.Go(func() error {
			return replicaClient.Subscribe(gctx, svc.ApplyRemote)
		})
	}

	g.Go(func() error {
		return sheet.NewRetentionScheduler(svc, cfg.RetentionInterval).Run(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (sheet.Persister, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		slog.Warn("using in-memory store - data is lost on restart")
		return store.NewMemory(), func() {}, nil
	case "postgres":
		st, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return st, func() { st.Close() }, nil
	default:
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, func() { st.Close() }, nil
	}
}
