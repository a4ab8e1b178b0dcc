package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/news-curator/internal/core/domain"
	"github.com/kirillkom/news-curator/internal/core/ports"
)

const (
	maxRejectionSamples  = 3
	maxRejectionClusters = 10
)

// RunAnalyticsUseCase derives funnel, journey, and rejection-pattern views
// from persisted traces. It never recomputes verdicts.
type RunAnalyticsUseCase struct {
	runs   ports.RunRepository
	traces ports.TraceRepository
}

func NewRunAnalyticsUseCase(runs ports.RunRepository, traces ports.TraceRepository) *RunAnalyticsUseCase {
	return &RunAnalyticsUseCase{runs: runs, traces: traces}
}

func (uc *RunAnalyticsUseCase) Funnel(ctx context.Context, runID string) (*domain.Funnel, error) {
	run, err := uc.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("funnel: %w", err)
	}

	counts, err := uc.traces.StageCounts(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("funnel stage counts: %w", err)
	}

	byOrdinal := make(map[int]*domain.FunnelStage)
	ordinals := make([]int, 0)
	for _, count := range counts {
		stage, ok := byOrdinal[count.StageOrdinal]
		if !ok {
			stage = &domain.FunnelStage{
				StageName:    count.StageName,
				StageOrdinal: count.StageOrdinal,
			}
			byOrdinal[count.StageOrdinal] = stage
			ordinals = append(ordinals, count.StageOrdinal)
		}
		switch count.Decision {
		case domain.DecisionPass:
			stage.Passed += count.Count
		case domain.DecisionReject:
			stage.Rejected += count.Count
		}
		stage.Input += count.Count
	}
	sort.Ints(ordinals)

	funnel := &domain.Funnel{
		RunID:      run.ID,
		Status:     run.Status,
		InputCount: run.InputCount,
		Stages:     make([]domain.FunnelStage, 0, len(ordinals)),
	}
	for _, ordinal := range ordinals {
		funnel.Stages = append(funnel.Stages, *byOrdinal[ordinal])
	}
	return funnel, nil
}

func (uc *RunAnalyticsUseCase) ArticleJourney(ctx context.Context, runID, articleURL string) (*domain.ArticleJourney, error) {
	run, err := uc.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("article journey: %w", err)
	}

	traces, err := uc.traces.ListByRunAndURL(ctx, runID, articleURL)
	if err != nil {
		return nil, fmt.Errorf("article journey traces: %w", err)
	}
	if len(traces) == 0 {
		return nil, domain.WrapError(domain.ErrArticleNotFound, "article journey", fmt.Errorf("no traces for url=%s", articleURL))
	}

	return &domain.ArticleJourney{
		RunID:        runID,
		ArticleURL:   articleURL,
		Traces:       traces,
		FinalOutcome: finalOutcome(run, traces),
	}, nil
}

// finalOutcome reports "accepted" only for completed runs: a run that
// aborted may have stopped an article between stages, so its pass-only
// trace history does not prove the article cleared the whole funnel.
func finalOutcome(run *domain.Run, traces []domain.Trace) string {
	for _, trace := range traces {
		if trace.Decision == domain.DecisionReject {
			return "rejected_at_" + trace.StageName
		}
	}
	switch run.Status {
	case domain.RunStatusRunning:
		return domain.OutcomeInProgress
	case domain.RunStatusCompleted:
		return domain.OutcomeAccepted
	default:
		return domain.OutcomeUnknown
	}
}

func (uc *RunAnalyticsUseCase) RejectionPatterns(ctx context.Context, runID, stageName string) (*domain.RejectionReport, error) {
	if _, err := uc.runs.GetRun(ctx, runID); err != nil {
		return nil, fmt.Errorf("rejection patterns: %w", err)
	}

	rejections, err := uc.traces.ListRejectionsByStage(ctx, runID, stageName)
	if err != nil {
		return nil, fmt.Errorf("rejection patterns traces: %w", err)
	}

	report := &domain.RejectionReport{
		RunID:      runID,
		StageName:  stageName,
		TotalCount: len(rejections),
		Patterns:   clusterRejections(rejections),
	}
	return report, nil
}

// clusterRejections groups rejections whose reasoning matches after
// normalization. Reasonings come from a judge model, so exact-match
// clustering is deliberately conservative: it surfaces repeated verbatim
// patterns without pretending to do semantic grouping.
func clusterRejections(rejections []domain.Trace) []domain.RejectionPattern {
	type cluster struct {
		reason  string
		count   int
		samples []domain.RejectionSample
	}

	byKey := make(map[string]*cluster)
	order := make([]string, 0)
	for _, trace := range rejections {
		key := normalizeReason(trace.Reasoning)
		c, ok := byKey[key]
		if !ok {
			c = &cluster{reason: key}
			byKey[key] = c
			order = append(order, key)
		}
		c.count++
		if len(c.samples) < maxRejectionSamples {
			c.samples = append(c.samples, domain.RejectionSample{
				ArticleURL:   trace.ArticleURL,
				ArticleTitle: trace.ArticleTitle,
				Reasoning:    trace.Reasoning,
			})
		}
	}

	clusters := make([]*cluster, 0, len(order))
	for _, key := range order {
		clusters = append(clusters, byKey[key])
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		if clusters[i].count != clusters[j].count {
			return clusters[i].count > clusters[j].count
		}
		return clusters[i].reason < clusters[j].reason
	})
	if len(clusters) > maxRejectionClusters {
		clusters = clusters[:maxRejectionClusters]
	}

	total := len(rejections)
	out := make([]domain.RejectionPattern, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, domain.RejectionPattern{
			Reason:  c.reason,
			Count:   c.count,
			Percent: float64(c.count) / float64(total) * 100,
			Samples: c.samples,
		})
	}
	return out
}

func normalizeReason(reason string) string {
	normalized := strings.ToLower(strings.TrimSpace(reason))
	normalized = strings.Join(strings.Fields(normalized), " ")
	normalized = strings.TrimRight(normalized, ".!,;: ")
	if normalized == "" {
		normalized = "(no reasoning)"
	}
	return normalized
}
