package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/news-curator/internal/core/domain"
	"github.com/kirillkom/news-curator/internal/core/ports"
)

// TraceRetentionUseCase sweeps traces past the retention window, then
// removes runs left without any traces. The sweep is idempotent: a repeat
// with the same cutoff deletes nothing.
type TraceRetentionUseCase struct {
	runs   ports.RunRepository
	traces ports.TraceRepository
	logger *slog.Logger
}

func NewTraceRetentionUseCase(runs ports.RunRepository, traces ports.TraceRepository, logger *slog.Logger) *TraceRetentionUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &TraceRetentionUseCase{runs: runs, traces: traces, logger: logger}
}

func (uc *TraceRetentionUseCase) Sweep(ctx context.Context, retention time.Duration, dryRun bool) (domain.SweepStats, error) {
	if retention <= 0 {
		return domain.SweepStats{}, domain.WrapError(domain.ErrInvalidInput, "retention sweep", fmt.Errorf("non-positive retention %v", retention))
	}
	cutoff := time.Now().UTC().Add(-retention)
	stats := domain.SweepStats{Cutoff: cutoff, DryRun: dryRun}

	if dryRun {
		traceCount, err := uc.traces.CountOlderThan(ctx, cutoff)
		if err != nil {
			return stats, fmt.Errorf("count stale traces: %w", err)
		}
		runCount, err := uc.runs.CountStartedBefore(ctx, cutoff)
		if err != nil {
			return stats, fmt.Errorf("count stale runs: %w", err)
		}
		stats.TracesDeleted = traceCount
		stats.RunsDeleted = runCount
		uc.logger.Info("retention sweep dry run",
			"cutoff", cutoff,
			"traces", traceCount,
			"runs", runCount,
		)
		return stats, nil
	}

	tracesDeleted, err := uc.traces.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return stats, fmt.Errorf("delete stale traces: %w", err)
	}
	stats.TracesDeleted = tracesDeleted

	runsDeleted, err := uc.runs.DeleteRunsWithoutTracesBefore(ctx, cutoff)
	if err != nil {
		return stats, fmt.Errorf("delete stale runs: %w", err)
	}
	stats.RunsDeleted = runsDeleted

	uc.logger.Info("retention sweep finished",
		"cutoff", cutoff,
		"traces_deleted", tracesDeleted,
		"runs_deleted", runsDeleted,
	)
	return stats, nil
}
