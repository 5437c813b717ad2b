package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"sessionauth/internal/config"
	"sessionauth/internal/database"
	"sessionauth/internal/modules/auth"
	"sessionauth/internal/pkg/logger"
	"sessionauth/internal/pkg/metrics"
	"sessionauth/internal/repository"
)

// auth_cleanup runs a single session sweep, for cron-style deployments that disable the
// in-process schedule.
func main() {
	retention := flag.Duration("retention", 0, "keep invalidated sessions this long (default SESSION_RETENTION)")
	flag.Parse()

	if err := config.LoadEnvFiles(); err != nil {
		slog.Error("load env files failed", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadAuthRuntimeConfig()
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.AppEnv)

	db, err := database.Connect(cfg.DatabaseURL, database.Options{Silent: true})
	if err != nil {
		log.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		log.Error("migrate failed", "error", err)
		os.Exit(1)
	}

	keep := cfg.SessionRetention
	if *retention > 0 {
		keep = *retention
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cleanup := auth.NewCleanupService(repository.NewSessionRepository(db), metrics.New(), log, nil)
	deleted, err := cleanup.RunOnce(ctx, keep)
	if err != nil {
		os.Exit(1)
	}
	log.Info("auth cleanup completed", "sessions_deleted", deleted, "retention", keep)
}
