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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"webinar/internal/archive"
	"webinar/internal/attendance"
	"webinar/internal/config"
	"webinar/internal/queue"
	"webinar/internal/store"
)

// Worker consumes ingest events from Redis and writes export snapshots.
func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("component", "worker")
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("worker failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.App, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	// Snapshots read the records the API stored, so both must share a
	// persistent store and the Redis queue.
	if cfg.QueueBackend != config.QueueRedis {
		return errors.New("worker requires QUEUE_BACKEND=redis")
	}
	if cfg.ArchiveDir == "" {
		return errors.New("worker requires ARCHIVE_DIR")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		db  *store.DB
		err error
	)
	switch cfg.StoreBackend {
	case config.StoreSQLite:
		db, err = store.OpenSQLite(ctx, cfg.SQLitePath)
	case config.StorePostgres:
		db, err = store.OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return fmt.Errorf("worker requires a persistent STORE_BACKEND, got %q", cfg.StoreBackend)
	}
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	defer db.Close()

	rdb := store.NewRedis(cfg.RedisAddr, queue.BlockTimeout)
	defer rdb.Close()
	if !rdb.Healthy(ctx) {
		log.Warn("redis not reachable yet, consumer will retry", "addr", cfg.RedisAddr)
	}

	att := attendance.NewService(store.NewRepository(db, nil), nil)
	arch := archive.New(att, cfg.ArchiveDir, log)
	q := queue.NewRedisQueue(rdb.Client, queue.DefaultKey)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":" + cfg.WorkerPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return arch.Run(gctx, q) })
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("worker started, waiting for events", "queue", queue.DefaultKey)
	err = g.Wait()
	log.Info("worker stopped")
	return err
}
