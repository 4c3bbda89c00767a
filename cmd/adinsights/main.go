package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/adinsights/internal/config"
	"github.com/harborview/adinsights/internal/database"
	"github.com/harborview/adinsights/internal/httpserver"
	"github.com/harborview/adinsights/internal/metrics"
	"github.com/harborview/adinsights/internal/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use logger yet, fall back to panic
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	logger, err := middleware.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("starting adinsights",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL is optional: without it the service runs on in-memory
	// stores, which suits development but loses data on restart.
	db, err := database.NewPostgresDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Warn("PostgreSQL unavailable, using in-memory storage", zap.Error(err))
		db = nil
	} else {
		defer db.Close()
	}

	// Redis is optional too: refresh and sweep locks fall back to
	// process-local ones.
	rdb, err := database.NewRedisDB(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis unavailable, using local locks", zap.Error(err))
		rdb = nil
	} else {
		defer rdb.Close()
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(cfg.Metrics.Namespace)
	}

	server := httpserver.NewServer(&httpserver.Dependencies{
		DB:      db,
		Redis:   rdb,
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
	})

	// Middleware chain, outermost first:
	// RequestID -> Recovery -> Logging -> RateLimit -> Auth -> Handler
	requestIDMW := middleware.NewRequestIDMiddleware()
	recoveryMW := middleware.NewRecoveryMiddleware(logger)
	loggingMW := middleware.NewLoggingMiddleware(logger, m)
	rateLimitMW := middleware.NewRateLimitMiddleware(cfg.RateLimit, logger)
	authMW := middleware.NewAuthMiddleware(cfg.Auth, logger)

	finalHandler := requestIDMW.Handler(
		recoveryMW.Handler(
			loggingMW.Handler(
				rateLimitMW.Handler(
					authMW.Handler(server),
				),
			),
		),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           finalHandler,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("HTTP server starting", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Periodic retention sweep
	if cfg.Retention.Enabled {
		go server.Janitor().Run(ctx, cfg.Retention.Interval)
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	cancel()

	logger.Info("server stopped")
}
