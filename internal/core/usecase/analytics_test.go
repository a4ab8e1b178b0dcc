package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/news-curator/internal/core/domain"
)

func seedRun(runs *runRepoFake, status domain.RunStatus) *domain.Run {
	run := &domain.Run{
		ID:         "r-1",
		StartedAt:  time.Now().UTC(),
		Status:     status,
		InputCount: 10,
		CreatedAt:  time.Now().UTC(),
	}
	runs.created = run
	return run
}

func seedTrace(traces *traceRepoFake, url, stage string, ordinal int, decision domain.Decision, reasoning string) {
	traces.traces = append(traces.traces, domain.Trace{
		ID:           url + stage,
		RunID:        "r-1",
		ArticleURL:   url,
		ArticleTitle: "title " + url,
		StageName:    stage,
		StageOrdinal: ordinal,
		Decision:     decision,
		Reasoning:    reasoning,
		CreatedAt:    time.Now().UTC(),
	})
}

func TestFunnelAggregatesStageCounts(t *testing.T) {
	runs := &runRepoFake{}
	traces := &traceRepoFake{}
	seedRun(runs, domain.RunStatusCompleted)
	for i := 0; i < 6; i++ {
		seedTrace(traces, string(rune('a'+i)), domain.StageNewsCheck, 1, domain.DecisionPass, "news")
	}
	for i := 6; i < 10; i++ {
		seedTrace(traces, string(rune('a'+i)), domain.StageNewsCheck, 1, domain.DecisionReject, "not news")
	}
	for i := 0; i < 2; i++ {
		seedTrace(traces, string(rune('a'+i)), domain.StageWowFactor, 2, domain.DecisionPass, "wow")
	}
	for i := 2; i < 6; i++ {
		seedTrace(traces, string(rune('a'+i)), domain.StageWowFactor, 2, domain.DecisionReject, "dull")
	}

	uc := NewRunAnalyticsUseCase(runs, traces)
	funnel, err := uc.Funnel(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("Funnel() error = %v", err)
	}
	if funnel.InputCount != 10 || funnel.Status != domain.RunStatusCompleted {
		t.Fatalf("unexpected funnel header: %+v", funnel)
	}
	if len(funnel.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(funnel.Stages))
	}
	first := funnel.Stages[0]
	if first.StageName != domain.StageNewsCheck || first.Input != 10 || first.Passed != 6 || first.Rejected != 4 {
		t.Fatalf("unexpected first stage: %+v", first)
	}
	second := funnel.Stages[1]
	if second.StageName != domain.StageWowFactor || second.Input != 6 || second.Passed != 2 || second.Rejected != 4 {
		t.Fatalf("unexpected second stage: %+v", second)
	}
}

func TestFunnelUnknownRun(t *testing.T) {
	uc := NewRunAnalyticsUseCase(&runRepoFake{}, &traceRepoFake{})
	if _, err := uc.Funnel(context.Background(), "missing"); !domain.IsKind(err, domain.ErrRunNotFound) {
		t.Fatalf("expected run-not-found, got %v", err)
	}
}

func TestArticleJourneyOutcomes(t *testing.T) {
	cases := []struct {
		name     string
		status   domain.RunStatus
		decision domain.Decision
		want     string
	}{
		{name: "rejected article", status: domain.RunStatusCompleted, decision: domain.DecisionReject, want: "rejected_at_" + domain.StageNewsCheck},
		{name: "accepted article", status: domain.RunStatusCompleted, decision: domain.DecisionPass, want: domain.OutcomeAccepted},
		{name: "run still going", status: domain.RunStatusRunning, decision: domain.DecisionPass, want: domain.OutcomeInProgress},
		{name: "run aborted mid-funnel", status: domain.RunStatusFailed, decision: domain.DecisionPass, want: domain.OutcomeUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runs := &runRepoFake{}
			traces := &traceRepoFake{}
			seedRun(runs, tc.status)
			seedTrace(traces, "https://example.org/a", domain.StageNewsCheck, 1, tc.decision, "because")

			uc := NewRunAnalyticsUseCase(runs, traces)
			journey, err := uc.ArticleJourney(context.Background(), "r-1", "https://example.org/a")
			if err != nil {
				t.Fatalf("ArticleJourney() error = %v", err)
			}
			if journey.FinalOutcome != tc.want {
				t.Fatalf("expected outcome %q, got %q", tc.want, journey.FinalOutcome)
			}
			if len(journey.Traces) != 1 {
				t.Fatalf("expected 1 trace, got %d", len(journey.Traces))
			}
		})
	}
}

func TestArticleJourneyUnknownArticle(t *testing.T) {
	runs := &runRepoFake{}
	seedRun(runs, domain.RunStatusCompleted)

	uc := NewRunAnalyticsUseCase(runs, &traceRepoFake{})
	if _, err := uc.ArticleJourney(context.Background(), "r-1", "https://example.org/unknown"); !domain.IsKind(err, domain.ErrArticleNotFound) {
		t.Fatalf("expected article-not-found, got %v", err)
	}
}

func TestRejectionPatternsClustersNormalizedReasons(t *testing.T) {
	runs := &runRepoFake{}
	traces := &traceRepoFake{}
	seedRun(runs, domain.RunStatusCompleted)
	seedTrace(traces, "a", domain.StageValuesFit, 3, domain.DecisionReject, "Focuses on politics.")
	seedTrace(traces, "b", domain.StageValuesFit, 3, domain.DecisionReject, "focuses  on politics")
	seedTrace(traces, "c", domain.StageValuesFit, 3, domain.DecisionReject, "FOCUSES ON POLITICS!")
	seedTrace(traces, "d", domain.StageValuesFit, 3, domain.DecisionReject, "contains violence")

	uc := NewRunAnalyticsUseCase(runs, traces)
	report, err := uc.RejectionPatterns(context.Background(), "r-1", domain.StageValuesFit)
	if err != nil {
		t.Fatalf("RejectionPatterns() error = %v", err)
	}
	if report.TotalCount != 4 {
		t.Fatalf("expected total 4, got %d", report.TotalCount)
	}
	if len(report.Patterns) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(report.Patterns))
	}

	top := report.Patterns[0]
	if top.Reason != "focuses on politics" || top.Count != 3 {
		t.Fatalf("unexpected top cluster: %+v", top)
	}
	if top.Percent != 75 {
		t.Fatalf("expected 75 percent, got %v", top.Percent)
	}
	if len(top.Samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(top.Samples))
	}
	if top.Samples[0].Reasoning != "Focuses on politics." {
		t.Fatalf("samples must keep the raw reasoning, got %q", top.Samples[0].Reasoning)
	}
}
