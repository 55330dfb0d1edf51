package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/telemetryhub/event-buffer/internal/api"
	"github.com/telemetryhub/event-buffer/internal/config"
	"github.com/telemetryhub/event-buffer/internal/db"
	"github.com/telemetryhub/event-buffer/internal/identity"
	"github.com/telemetryhub/event-buffer/internal/lock"
	"github.com/telemetryhub/event-buffer/internal/metrics"
	"github.com/telemetryhub/event-buffer/internal/queue"
	"github.com/telemetryhub/event-buffer/internal/ratelimiter"
	"github.com/telemetryhub/event-buffer/internal/sink"
	"github.com/telemetryhub/event-buffer/internal/store"
	"github.com/telemetryhub/event-buffer/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- backing store ----
	ctx := context.Background()

	var pool *pgxpool.Pool
	if cfg.StoreBackend == store.BackendPostgres {
		pool, err = db.Connect(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		logger.Info("database migrations applied")
	}

	backing, err := store.New(cfg.StoreBackend, pool, cfg.DynamoTable)
	if err != nil {
		logger.Fatal("failed to create store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	retryable := store.NewRetryable(backing, logger,
		store.WithWriteBackoff(cfg.StoreRetryBackoff),
		store.WithRetryHook(m.RetryHook()),
	)

	onEvict, onWrite := m.QueueHooks()
	q := queue.New(retryable, cfg.QueueKey, logger,
		queue.WithHooks(queue.Hooks{OnEvict: onEvict, OnWrite: onWrite}),
	)

	self := identity.New()
	logger.Info("instance identity generated",
		zap.String("instance_id", self.InstanceID()),
		zap.String("hostname", self.Hostname()))

	onAcquired, onContended := m.LockHooks()
	lk, err := lock.New(retryable, cfg.LockKey, self, lock.Options{
		Enabled:        cfg.LockEnabled,
		Mode:           cfg.LockMode,
		Duration:       cfg.LockDuration,
		CheckInterval:  cfg.LockCheckInterval,
		AcquireTimeout: cfg.LockAcquireTimeout,
	}, logger, lock.WithHooks(lock.Hooks{OnAcquired: onAcquired, OnContended: onContended}))
	if err != nil {
		logger.Fatal("failed to create lock", zap.Error(err))
	}

	// ---- flusher ----
	// Context for the background drain loop; cancelled on shutdown signal.
	flushCtx, cancelFlush := context.WithCancel(ctx)
	defer cancelFlush()

	snk := sink.NewWebhookSink(cfg.SinkURL, cfg.SinkTimeout)
	limiter := ratelimiter.New(cfg.RateLimit)

	onDelivered, onRetried, onDropped := m.FlushHooks()
	flusher := worker.NewFlusher(q, lk, snk, limiter,
		cfg.FlushInterval, cfg.FlushMaxAttempts, logger,
		worker.WithFlushHooks(worker.FlushHooks{
			OnDelivered: onDelivered,
			OnRetried:   onRetried,
			OnDropped:   onDropped,
		}),
	)

	flusherDone := make(chan struct{})
	go func() {
		defer close(flusherDone)
		flusher.Run(flushCtx)
	}()

	// ---- HTTP server ----
	router := api.NewRouter(q, lk, self, flusher, retryable, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Stop the flush loop and wait for an in-flight cycle to finish.
	cancelFlush()
	<-flusherDone

	// 3. Let another instance take over without waiting out the TTL.
	if err := lk.Release(ctx); err != nil {
		logger.Warn("failed to release lock on shutdown", zap.Error(err))
	}

	logger.Info("server stopped cleanly")
}
