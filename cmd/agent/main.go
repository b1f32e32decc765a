package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/speechtrack/syncagent/internal/api"
	"github.com/speechtrack/syncagent/internal/auth"
	"github.com/speechtrack/syncagent/internal/config"
	"github.com/speechtrack/syncagent/internal/connectivity"
	"github.com/speechtrack/syncagent/internal/db"
	"github.com/speechtrack/syncagent/internal/metrics"
	"github.com/speechtrack/syncagent/internal/queue"
	"github.com/speechtrack/syncagent/internal/ratelimiter"
	"github.com/speechtrack/syncagent/internal/store"
	"github.com/speechtrack/syncagent/internal/uploader"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- durable store ----
	ctx := context.Background()
	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open queue database", zap.Error(err))
	}
	defer conn.Close()

	if err := db.Migrate(conn); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("queue database ready", zap.String("path", cfg.DBPath))

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	st := store.NewSQLiteStore(conn, logger)
	up := uploader.NewHTTPUploader(cfg.BackendBaseURL, uploader.FileReader{}, cfg.UploadTimeout)
	mon := connectivity.NewMonitor(
		connectivity.HTTPProbe(cfg.BackendBaseURL, cfg.ProbeTimeout),
		cfg.ProbeInterval,
		logger,
	)
	tokenStore := auth.NewTokenStore(cfg.TokenPath)
	tokens := func(context.Context) (string, error) { return tokenStore.Get() }
	limiter := ratelimiter.New(cfg.UploadsPerSecond)

	onSent, onFailed, onDepth := m.Hooks()
	svc := queue.NewService(st, up, mon, tokens, limiter, cfg.MaxAttempts, logger, queue.Hooks{
		OnSent:   onSent,
		OnFailed: onFailed,
		OnDepth:  onDepth,
	})

	// Starts the connectivity subscription, reclaims any upload left
	// mid-flight by a previous run, and drains the backlog.
	svc.Init(ctx)

	// ---- HTTP server ----
	router := api.NewRouter(svc, tokens, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("agent listening", zap.String("addr", srv.Addr))
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

	// 2. Stop the connectivity subscription and background processing.
	// Queued recordings stay in the store for the next run.
	svc.Destroy()

	logger.Info("agent stopped cleanly")
}
