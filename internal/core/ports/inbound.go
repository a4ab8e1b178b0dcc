package ports

import (
	"context"
	"time"

	"github.com/kirillkom/news-curator/internal/core/domain"
)

// PipelineRunner is the inbound contract for judging a batch of articles.
type PipelineRunner interface {
	RunBatch(ctx context.Context, articles []domain.Article) (*domain.PipelineResult, error)
}

// RunAnalytics is the inbound read model over accumulated traces.
type RunAnalytics interface {
	Funnel(ctx context.Context, runID string) (*domain.Funnel, error)
	ArticleJourney(ctx context.Context, runID, articleURL string) (*domain.ArticleJourney, error)
	RejectionPatterns(ctx context.Context, runID, stageName string) (*domain.RejectionReport, error)
}

// TraceJanitor is the inbound contract for the retention sweep.
type TraceJanitor interface {
	Sweep(ctx context.Context, retention time.Duration, dryRun bool) (domain.SweepStats, error)
}
