package ports

import (
	"context"
	"time"

	"github.com/kirillkom/news-curator/internal/core/domain"
)

// RunRepository persists run lifecycle state. The pipeline orchestrator is
// the sole writer.
type RunRepository interface {
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	FinalizeRun(ctx context.Context, run *domain.Run) error
	CountStartedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteRunsWithoutTracesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TraceRepository appends and reads per-stage verdict traces.
type TraceRepository interface {
	Insert(ctx context.Context, trace *domain.Trace) error
	ListByRunAndURL(ctx context.Context, runID, articleURL string) ([]domain.Trace, error)
	ListRejectionsByStage(ctx context.Context, runID, stageName string) ([]domain.Trace, error)
	StageCounts(ctx context.Context, runID string) ([]domain.StageDecisionCount, error)
	CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// JudgeStage evaluates one article against exactly one criterion. Stages
// that do not consume policy rules ignore the rules argument. A returned
// error means the backing service failed after retries; it is never a
// disguised verdict.
type JudgeStage interface {
	Name() string
	Ordinal() int
	Evaluate(ctx context.Context, article domain.Article, rules domain.PolicyRules) (domain.StageVerdict, error)
}

// RuleSource supplies the current policy rules, refreshed once per run.
type RuleSource interface {
	Load(ctx context.Context) (domain.PolicyRules, error)
}

// MessageQueue moves candidate batches in and accepted sets out.
type MessageQueue interface {
	PublishAccepted(ctx context.Context, result *domain.PipelineResult) error
	SubscribeCandidateBatches(ctx context.Context, handler func(context.Context, []domain.Article) error) error
}
