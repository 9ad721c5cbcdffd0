// Command migrate runs the guest-to-account migration pipeline for one
// (guest, account) pair and prints the migration report as JSON. It is
// invoked by the account-upgrade handler or operated manually.
//
// Flags:
//
//	--guest     guest id whose local data is migrated (required)
//	--account   target account id (required)
//	--strategy  conflict resolution strategy (default: configured default)
//
// Exit codes: 0 = migration succeeded, 1 = migration failed or was rolled
// back.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/studypath/studypath-backend/internal/adapter/gueststore"
	"github.com/studypath/studypath-backend/internal/adapter/postgres"
	"github.com/studypath/studypath-backend/internal/adapter/postgres/audit"
	"github.com/studypath/studypath-backend/internal/adapter/postgres/checkpoint"
	"github.com/studypath/studypath-backend/internal/adapter/postgres/curriculum"
	"github.com/studypath/studypath-backend/internal/adapter/postgres/flashcard"
	"github.com/studypath/studypath-backend/internal/adapter/postgres/preferences"
	"github.com/studypath/studypath-backend/internal/adapter/postgres/progress"
	"github.com/studypath/studypath-backend/internal/app"
	"github.com/studypath/studypath-backend/internal/config"
	"github.com/studypath/studypath-backend/internal/domain"
	"github.com/studypath/studypath-backend/internal/service/migration"
	"github.com/studypath/studypath-backend/internal/service/schema"
)

func main() {
	guestFlag := flag.String("guest", "", "guest id whose local data is migrated")
	accountFlag := flag.String("account", "", "target account id")
	strategyFlag := flag.String("strategy", "", "conflict resolution strategy")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	accountID, err := uuid.Parse(*accountFlag)
	if err != nil {
		logger.Error("invalid account id", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	guestStore, err := gueststore.Open(cfg.GuestStore)
	if err != nil {
		logger.Error("open guest store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer guestStore.Close()

	svc := migration.NewService(
		logger,
		guestStore,
		schema.NewMigrator(logger, guestStore),
		curriculum.New(pool),
		flashcard.New(pool),
		progress.New(pool),
		preferences.New(pool),
		checkpoint.New(pool),
		audit.New(pool),
		postgres.NewTxManager(pool),
		cfg.Migration,
	)

	report, err := svc.Migrate(ctx, migration.MigrateInput{
		GuestID:   *guestFlag,
		AccountID: accountID,
		Strategy:  domain.Strategy(*strategyFlag),
	})
	if err != nil {
		logger.Error("migration failed",
			slog.String("guest_id", *guestFlag),
			slog.String("error", err.Error()),
			slog.Bool("rollback_performed", report.RollbackPerformed),
			slog.Bool("rollback_succeeded", report.RollbackSucceeded),
		)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if encodeErr := encoder.Encode(report); encodeErr != nil {
		logger.Error("encode report", slog.String("error", encodeErr.Error()))
		os.Exit(1)
	}

	if err != nil || !report.Success {
		os.Exit(1)
	}
}
