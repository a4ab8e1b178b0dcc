package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/news-curator/internal/config"
	"github.com/kirillkom/news-curator/internal/core/domain"
	"github.com/kirillkom/news-curator/internal/core/usecase"
	"github.com/kirillkom/news-curator/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/news-curator/internal/observability/logging"
)

// report exports one run's funnel and rejection patterns as a spreadsheet
// for the editors reviewing what the judges filtered out and why.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	runID := flag.String("run", "", "run id to export (required)")
	outPath := flag.String("out", "run-report.xlsx", "output spreadsheet path")
	flag.Parse()
	if *runID == "" {
		log.Fatal("flag -run is required")
	}

	logger := logging.NewJSONLogger("report", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	analytics := usecase.NewRunAnalyticsUseCase(postgres.NewRunRepository(db), postgres.NewTraceRepository(db))
	funnel, err := analytics.Funnel(ctx, *runID)
	if err != nil {
		log.Fatalf("load funnel: %v", err)
	}

	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	if err := writeFunnelSheet(file, funnel); err != nil {
		log.Fatalf("write funnel sheet: %v", err)
	}
	if err := writeRejectionSheet(ctx, file, analytics, funnel); err != nil {
		log.Fatalf("write rejections sheet: %v", err)
	}

	if err := file.SaveAs(*outPath); err != nil {
		log.Fatalf("save report: %v", err)
	}
	logger.Info("report written", "run_id", *runID, "path", *outPath)
}

func writeFunnelSheet(file *excelize.File, funnel *domain.Funnel) error {
	const sheet = "Funnel"
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	header := []any{"Stage", "Ordinal", "Input", "Passed", "Rejected"}
	if err := file.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, stage := range funnel.Stages {
		row := []any{stage.StageName, stage.StageOrdinal, stage.Input, stage.Passed, stage.Rejected}
		cell := fmt.Sprintf("A%d", i+2)
		if err := file.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	summary := []any{"run", funnel.RunID, "status", string(funnel.Status), "input", funnel.InputCount}
	cell := fmt.Sprintf("A%d", len(funnel.Stages)+3)
	return file.SetSheetRow(sheet, cell, &summary)
}

func writeRejectionSheet(ctx context.Context, file *excelize.File, analytics *usecase.RunAnalyticsUseCase, funnel *domain.Funnel) error {
	const sheet = "Rejections"
	if _, err := file.NewSheet(sheet); err != nil {
		return err
	}

	header := []any{"Stage", "Reason", "Count", "Percent", "Sample URL", "Sample Title"}
	if err := file.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	rowIdx := 2
	for _, stage := range funnel.Stages {
		if stage.Rejected == 0 {
			continue
		}
		report, err := analytics.RejectionPatterns(ctx, funnel.RunID, stage.StageName)
		if err != nil {
			return fmt.Errorf("rejections for %s: %w", stage.StageName, err)
		}
		for _, pattern := range report.Patterns {
			sampleURL, sampleTitle := "", ""
			if len(pattern.Samples) > 0 {
				sampleURL = pattern.Samples[0].ArticleURL
				sampleTitle = pattern.Samples[0].ArticleTitle
			}
			row := []any{stage.StageName, pattern.Reason, pattern.Count, pattern.Percent, sampleURL, sampleTitle}
			if err := file.SetSheetRow(sheet, fmt.Sprintf("A%d", rowIdx), &row); err != nil {
				return err
			}
			rowIdx++
		}
	}
	return nil
}
