package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/news-curator/internal/config"
	"github.com/kirillkom/news-curator/internal/core/usecase"
	"github.com/kirillkom/news-curator/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/news-curator/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	days := flag.Int("days", cfg.TraceRetentionDays, "retention window in days")
	dryRun := flag.Bool("dry-run", false, "report what would be deleted without deleting")
	flag.Parse()

	logger := logging.NewJSONLogger("cleanup", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	uc := usecase.NewTraceRetentionUseCase(postgres.NewRunRepository(db), postgres.NewTraceRepository(db), logger)
	stats, err := uc.Sweep(ctx, time.Duration(*days)*24*time.Hour, *dryRun)
	if err != nil {
		log.Fatalf("retention sweep: %v", err)
	}

	logger.Info("sweep result",
		"cutoff", stats.Cutoff,
		"traces_deleted", stats.TracesDeleted,
		"runs_deleted", stats.RunsDeleted,
		"dry_run", stats.DryRun,
	)
}
