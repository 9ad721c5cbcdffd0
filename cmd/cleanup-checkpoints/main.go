// Command cleanup-checkpoints purges completed migration checkpoints whose
// audit retention window has passed. It is intended to be invoked by an
// external cron job, not as an in-process goroutine.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/studypath/studypath-backend/internal/adapter/postgres"
	"github.com/studypath/studypath-backend/internal/adapter/postgres/checkpoint"
	"github.com/studypath/studypath-backend/internal/app"
	"github.com/studypath/studypath-backend/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	checkpointRepo := checkpoint.New(pool)

	cutoff := time.Now().UTC().Add(-cfg.Migration.CheckpointRetention)

	purged, err := checkpointRepo.PurgeExpired(ctx, cutoff)
	if err != nil {
		logger.Error("purge failed",
			slog.String("error", err.Error()),
			slog.Time("cutoff", cutoff),
		)
		os.Exit(1)
	}

	logger.Info("purge completed",
		slog.Int64("purged", purged),
		slog.Time("cutoff", cutoff),
	)
}
