// Command janitor runs a single retention sweep and exits. Meant for cron or
// a Kubernetes CronJob; the long-running server has its own periodic sweep.
package main

import (
	"context"
	"encoding/json"
	"os"

	"go.uber.org/zap"

	"github.com/harborview/adinsights/internal/cache"
	"github.com/harborview/adinsights/internal/config"
	"github.com/harborview/adinsights/internal/database"
	"github.com/harborview/adinsights/internal/middleware"
	"github.com/harborview/adinsights/internal/retention"
	"github.com/harborview/adinsights/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := middleware.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer logger.Sync()

	ctx := context.Background()

	db, err := database.NewPostgresDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	var lock cache.RefreshLock
	if rdb, err := database.NewRedisDB(ctx, cfg.Redis, logger); err != nil {
		logger.Warn("Redis unavailable, sweeping without cross-instance locks", zap.Error(err))
	} else {
		defer rdb.Close()
		lock = cache.NewRedisRefreshLock(rdb.Client)
	}

	janitor := retention.NewJanitor(retention.Config{
		Clients:    storage.NewPostgresClientRepo(db.Pool),
		Store:      storage.NewPostgresSummaryStore(db.Pool),
		Lock:       lock,
		Logger:     logger,
		MonthsKept: cfg.Retention.MonthsKept,
		WeeksKept:  cfg.Retention.WeeksKept,
	})

	report, err := janitor.Sweep(ctx)
	if err != nil {
		logger.Fatal("sweep failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error("failed to print report", zap.Error(err))
	}

	if len(report.Failures) > 0 {
		os.Exit(1)
	}
}
