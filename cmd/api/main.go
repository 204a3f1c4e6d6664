package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"webinar/internal/archive"
	"webinar/internal/attendance"
	"webinar/internal/config"
	"webinar/internal/handler"
	"webinar/internal/httpmiddleware"
	"webinar/internal/ingest"
	"webinar/internal/queue"
	"webinar/internal/sheet"
	"webinar/internal/store"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Error("http server failed", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.App) *slog.Logger {
	level := slog.LevelInfo
	if cfg.LogDebug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
	return log
}

func run(cfg config.App, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	checks := map[string]handler.HealthCheck{}
	// Events are only published when something consumes them: cmd/worker
	// for Redis, the in-process archiver for the memory queue.
	var q queue.Queue
	switch {
	case cfg.QueueBackend == config.QueueRedis:
		rdb := store.NewRedis(cfg.RedisAddr, queue.BlockTimeout)
		defer rdb.Close()
		checks["redis"] = rdb.Healthy
		q = queue.NewRedisQueue(rdb.Client, queue.DefaultKey)
	case cfg.ArchiveDir != "":
		q = queue.NewInMemory(64)
	}
	var pub ingest.Publisher
	if q != nil {
		pub = q
	}

	validator := attendance.NewValidator()
	att := attendance.NewService(repo, validator)
	ing := ingest.NewService(repo, sheet.Auto{}, validator, pub, ingest.Options{
		MaxBytes:    cfg.MaxUploadBytes,
		Timeout:     cfg.IngestTimeout,
		RowBatch:    cfg.RowBatchSize,
		InsertBatch: cfg.InsertBatchSize,
		InsertDelay: cfg.InsertBatchDelay,
		ErrorLimit:  cfg.ErrorReportLimit,
	}, log.With("component", "ingest"))
	h := handler.New(att, ing, checks, log.With("component", "http"), !cfg.Production())

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(securityHeaders(cfg.Production()))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	limited := r.Group("", httpmiddleware.NewLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin).Middleware())
	h.Register(limited)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Uploads may run for the whole ingest budget.
		WriteTimeout: cfg.IngestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "port", cfg.HTTPPort, "store", cfg.StoreBackend, "queue", cfg.QueueBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.ArchiveDir != "" && cfg.QueueBackend == config.QueueMemory {
		arch := archive.New(att, cfg.ArchiveDir, log)
		g.Go(func() error { return arch.Run(gctx, q) })
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server exited")
	return nil
}

// openRepository returns the configured backend and a func releasing it.
func openRepository(ctx context.Context, cfg config.App) (attendance.Repository, func(), error) {
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
		return store.NewMemory(nil), func() {}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	return store.NewRepository(db, nil), func() { _ = db.Close() }, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        24 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

var baseHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	"Referrer-Policy":        "strict-origin-when-cross-origin",
}

// securityHeaders sets the static response headers. HSTS is only sent from
// a release build, which sits behind TLS.
func securityHeaders(release bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		for k, v := range baseHeaders {
			h.Set(k, v)
		}
		if release {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
