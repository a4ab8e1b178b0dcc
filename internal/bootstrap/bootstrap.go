package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/news-curator/internal/config"
	"github.com/kirillkom/news-curator/internal/core/ports"
	"github.com/kirillkom/news-curator/internal/core/usecase"
	"github.com/kirillkom/news-curator/internal/infrastructure/llm/anthropic"
	"github.com/kirillkom/news-curator/internal/infrastructure/queue/nats"
	"github.com/kirillkom/news-curator/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/news-curator/internal/infrastructure/resilience"
	"github.com/kirillkom/news-curator/internal/infrastructure/rules/yamlrules"
	"github.com/kirillkom/news-curator/internal/observability/logging"
	"github.com/kirillkom/news-curator/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue       ports.MessageQueue
	Runs        ports.RunRepository
	PipelineUC  ports.PipelineRunner
	AnalyticsUC ports.RunAnalytics
	RetentionUC ports.TraceJanitor

	PipelineMetrics *metrics.PipelineMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	runRepo := postgres.NewRunRepository(db)
	traceRepo := postgres.NewTraceRepository(db)

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: cfg.RetryInitialBackoff,
		RetryMaxBackoff:     cfg.RetryMaxBackoff,
		RetryMultiplier:     2.0,
		BreakerEnabled:      true,
	})

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSCandidatesSubject, cfg.NATSAcceptedSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	pipelineMetrics := metrics.NewPipelineMetrics(service)

	client := anthropic.New(anthropic.Config{
		BaseURL:           cfg.AnthropicBaseURL,
		APIKey:            cfg.AnthropicAPIKey,
		RequestTimeout:    cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Executor:          executor,
	})
	stages := buildStages(cfg, client, service, pipelineMetrics)

	ruleSource := yamlrules.New(cfg.RulesPath, logger)

	pipelineUC := usecase.NewRunPipelineUseCase(runRepo, traceRepo, stages, ruleSource, logger, pipelineMetrics, usecase.PipelineConfig{
		Service:          service,
		Workers:          cfg.PipelineWorkers,
		ContentCharLimit: cfg.ContentCharLimit,
		TracingEnabled:   cfg.TracingEnabled,
	})
	analyticsUC := usecase.NewRunAnalyticsUseCase(runRepo, traceRepo)
	retentionUC := usecase.NewTraceRetentionUseCase(runRepo, traceRepo, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:       queue,
		Runs:        runRepo,
		PipelineUC:  pipelineUC,
		AnalyticsUC: analyticsUC,
		RetentionUC: retentionUC,

		PipelineMetrics: pipelineMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// buildStages assembles the judge chain: the ordered three-stage funnel by
// default, or the legacy single-pass judge when multi-stage is disabled.
func buildStages(cfg config.Config, client *anthropic.Client, service string, m *metrics.PipelineMetrics) []ports.JudgeStage {
	if !cfg.MultiStageEnabled {
		return []ports.JudgeStage{
			anthropic.NewCombinedStage(client, anthropic.StageConfig{Model: cfg.CombinedModel, Threshold: cfg.CombinedThreshold}, service, m),
		}
	}
	return []ports.JudgeStage{
		anthropic.NewNewsCheckStage(client, anthropic.StageConfig{Model: cfg.NewsCheckModel}, service, m),
		anthropic.NewWowFactorStage(client, anthropic.StageConfig{Model: cfg.WowFactorModel, Threshold: cfg.WowThreshold}, service, m),
		anthropic.NewValuesFitStage(client, anthropic.StageConfig{Model: cfg.ValuesFitModel, Threshold: cfg.ValuesThreshold}, service, m),
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
