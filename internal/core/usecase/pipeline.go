package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/news-curator/internal/core/domain"
	"github.com/kirillkom/news-curator/internal/core/ports"
	"github.com/kirillkom/news-curator/internal/observability/metrics"
)

type PipelineConfig struct {
	Service          string
	Workers          int
	ContentCharLimit int
	TracingEnabled   bool
}

// RunPipelineUseCase drives one batch of candidate articles through the
// ordered judge stages. Stage errors are contained per article: a failed
// evaluation rejects that article with the failure attributed in its trace,
// and the batch keeps going. Only batch setup aborts the whole run.
type RunPipelineUseCase struct {
	runs    ports.RunRepository
	traces  ports.TraceRepository
	stages  []ports.JudgeStage
	rules   ports.RuleSource
	logger  *slog.Logger
	metrics *metrics.PipelineMetrics
	cfg     PipelineConfig
}

func NewRunPipelineUseCase(
	runs ports.RunRepository,
	traces ports.TraceRepository,
	stages []ports.JudgeStage,
	rules ports.RuleSource,
	logger *slog.Logger,
	m *metrics.PipelineMetrics,
	cfg PipelineConfig,
) *RunPipelineUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &RunPipelineUseCase{
		runs:    runs,
		traces:  traces,
		stages:  stages,
		rules:   rules,
		logger:  logger,
		metrics: m,
		cfg:     cfg,
	}
}

func (uc *RunPipelineUseCase) RunBatch(ctx context.Context, articles []domain.Article) (*domain.PipelineResult, error) {
	if len(articles) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "run batch", errors.New("empty article batch"))
	}
	for i, article := range articles {
		if article.URL == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "run batch", fmt.Errorf("article %d has no url", i))
		}
	}
	if len(uc.stages) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "run batch", errors.New("no judge stages configured"))
	}

	now := time.Now().UTC()
	run := &domain.Run{
		ID:         uuid.NewString(),
		StartedAt:  now,
		Status:     domain.RunStatusRunning,
		InputCount: len(articles),
		CreatedAt:  now,
	}
	if err := uc.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	uc.logger.Info("pipeline run started",
		"run_id", run.ID,
		"input_count", len(articles),
		"stages", len(uc.stages),
	)

	rules, err := uc.rules.Load(ctx)
	if err != nil {
		setupErr := fmt.Errorf("load policy rules: %w", err)
		uc.finalize(ctx, run, domain.RunStatusFailed, nil, setupErr.Error())
		return nil, setupErr
	}

	outcomes := make([]domain.ArticleOutcome, len(articles))
	var group errgroup.Group
	group.SetLimit(uc.cfg.Workers)
	for i, article := range articles {
		i, article := i, article
		group.Go(func() error {
			if ctx.Err() != nil {
				outcomes[i] = domain.ArticleOutcome{
					Article:      article,
					Accepted:     false,
					RejectStage:  uc.stages[0].Name(),
					RejectReason: "batch aborted before evaluation",
				}
				return nil
			}
			outcomes[i] = uc.judgeArticle(ctx, run.ID, article, rules)
			return nil
		})
	}
	_ = group.Wait()

	status := domain.RunStatusCompleted
	errorMsg := ""
	if ctxErr := ctx.Err(); ctxErr != nil {
		status = domain.RunStatusFailed
		errorMsg = fmt.Sprintf("batch aborted: %v", ctxErr)
	}

	passCounts := uc.passCounts(outcomes)
	uc.finalize(ctx, run, status, passCounts, errorMsg)

	result := &domain.PipelineResult{
		RunID: run.ID,
		Run:   run,
	}
	for _, outcome := range outcomes {
		if outcome.Accepted {
			result.Accepted = append(result.Accepted, outcome)
		} else {
			result.Rejected = append(result.Rejected, outcome)
		}
	}

	uc.logger.Info("pipeline run finished",
		"run_id", run.ID,
		"status", string(run.Status),
		"accepted", len(result.Accepted),
		"rejected", len(result.Rejected),
	)

	if status == domain.RunStatusFailed {
		return result, fmt.Errorf("run %s aborted: %w", run.ID, ctx.Err())
	}
	return result, nil
}

func (uc *RunPipelineUseCase) judgeArticle(ctx context.Context, runID string, article domain.Article, rules domain.PolicyRules) domain.ArticleOutcome {
	uc.metrics.ArticleStarted()
	defer uc.metrics.ArticleFinished()

	// The ceiling is in characters, not bytes: a byte cut would shorten
	// non-ASCII bodies too far and could split a rune mid-sequence.
	contentChars := utf8.RuneCountInString(article.Body)
	if uc.cfg.ContentCharLimit > 0 && contentChars > uc.cfg.ContentCharLimit {
		article.Body = string([]rune(article.Body)[:uc.cfg.ContentCharLimit])
	}

	outcome := domain.ArticleOutcome{Article: article}
	for _, stage := range uc.stages {
		verdict, err := stage.Evaluate(ctx, article, rules)
		if err != nil {
			reason := fmt.Sprintf("stage unavailable: %v", err)
			uc.logger.Error("judge stage failed",
				"run_id", runID,
				"stage", stage.Name(),
				"article_url", article.URL,
				"error", err,
			)
			uc.writeTrace(ctx, runID, article, stage, domain.StageVerdict{
				Decision:  domain.DecisionReject,
				Reasoning: reason,
			}, contentChars)
			outcome.RejectStage = stage.Name()
			outcome.RejectReason = reason
			return outcome
		}

		uc.writeTrace(ctx, runID, article, stage, verdict, contentChars)
		uc.applyVerdict(&outcome, stage.Name(), verdict)

		if verdict.Decision != domain.DecisionPass {
			outcome.RejectStage = stage.Name()
			outcome.RejectReason = verdict.Reasoning
			return outcome
		}
		outcome.StagesPassed++
	}

	outcome.Accepted = true
	return outcome
}

func (uc *RunPipelineUseCase) applyVerdict(outcome *domain.ArticleOutcome, stageName string, verdict domain.StageVerdict) {
	switch stageName {
	case domain.StageNewsCheck:
		outcome.ContentType = verdict.Category
	case domain.StageWowFactor:
		outcome.WowScore = verdict.Score
	case domain.StageValuesFit:
		outcome.ValuesScore = verdict.Score
	}
}

// writeTrace never gates the verdict: one immediate retry, then the failure
// is logged and counted while the article's outcome stands.
func (uc *RunPipelineUseCase) writeTrace(ctx context.Context, runID string, article domain.Article, stage ports.JudgeStage, verdict domain.StageVerdict, contentChars int) {
	if !uc.cfg.TracingEnabled {
		return
	}

	trace := &domain.Trace{
		ID:           uuid.NewString(),
		RunID:        runID,
		ArticleURL:   article.URL,
		ArticleTitle: article.Title,
		StageName:    stage.Name(),
		StageOrdinal: stage.Ordinal(),
		Decision:     verdict.Decision,
		Score:        verdict.Score,
		Reasoning:    verdict.Reasoning,
		TokensIn:     verdict.TokensIn,
		TokensOut:    verdict.TokensOut,
		LatencyMS:    verdict.LatencyMS,
		ContentChars: contentChars,
		CreatedAt:    time.Now().UTC(),
	}

	writeCtx := context.WithoutCancel(ctx)
	err := uc.traces.Insert(writeCtx, trace)
	if err != nil {
		err = uc.traces.Insert(writeCtx, trace)
	}
	if err != nil {
		uc.metrics.TraceWriteFailed()
		uc.logger.Warn("trace write dropped",
			"run_id", runID,
			"stage", stage.Name(),
			"article_url", article.URL,
			"error", err,
		)
	}
}

// passCounts derives the funnel from in-memory outcomes: an article counts
// for every stage ordinal it passed, so counts are monotonically
// non-increasing across stages.
func (uc *RunPipelineUseCase) passCounts(outcomes []domain.ArticleOutcome) []int {
	counts := make([]int, len(uc.stages))
	for _, outcome := range outcomes {
		for ordinal := 1; ordinal <= outcome.StagesPassed && ordinal <= len(counts); ordinal++ {
			counts[ordinal-1]++
		}
	}
	return counts
}

func (uc *RunPipelineUseCase) finalize(ctx context.Context, run *domain.Run, status domain.RunStatus, passCounts []int, errorMsg string) {
	completed := time.Now().UTC()
	run.Status = status
	run.CompletedAt = &completed
	run.ErrorMsg = errorMsg
	if len(passCounts) > 0 {
		run.Stage1Pass = &passCounts[0]
	}
	if len(passCounts) > 1 {
		run.Stage2Pass = &passCounts[1]
	}
	if len(passCounts) > 2 {
		run.Stage3Pass = &passCounts[2]
	}

	if err := uc.runs.FinalizeRun(context.WithoutCancel(ctx), run); err != nil {
		uc.logger.Error("finalize run failed", "run_id", run.ID, "status", string(status), "error", err)
	}
	uc.metrics.ObserveRun(uc.cfg.Service, string(status))
}
