package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/news-curator/internal/core/domain"
)

type pipelineFake struct {
	result *domain.PipelineResult
	err    error
	got    []domain.Article
}

func (f *pipelineFake) RunBatch(_ context.Context, articles []domain.Article) (*domain.PipelineResult, error) {
	f.got = articles
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type analyticsFake struct {
	funnel     *domain.Funnel
	journey    *domain.ArticleJourney
	rejections *domain.RejectionReport
	err        error
}

func (f *analyticsFake) Funnel(context.Context, string) (*domain.Funnel, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.funnel, nil
}

func (f *analyticsFake) ArticleJourney(context.Context, string, string) (*domain.ArticleJourney, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.journey, nil
}

func (f *analyticsFake) RejectionPatterns(context.Context, string, string) (*domain.RejectionReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rejections, nil
}

type janitorFake struct {
	stats     domain.SweepStats
	err       error
	retention time.Duration
	dryRun    bool
}

func (f *janitorFake) Sweep(_ context.Context, retention time.Duration, dryRun bool) (domain.SweepStats, error) {
	f.retention = retention
	f.dryRun = dryRun
	if f.err != nil {
		return domain.SweepStats{}, f.err
	}
	return f.stats, nil
}

type runRepoFake struct {
	run *domain.Run
	err error
}

func (f *runRepoFake) CreateRun(context.Context, *domain.Run) error { return nil }

func (f *runRepoFake) GetRun(context.Context, string) (*domain.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.run, nil
}

func (f *runRepoFake) FinalizeRun(context.Context, *domain.Run) error { return nil }

func (f *runRepoFake) CountStartedBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func (f *runRepoFake) DeleteRunsWithoutTracesBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func newTestRouter(pipeline *pipelineFake, analytics *analyticsFake, janitor *janitorFake, runs *runRepoFake) http.Handler {
	if pipeline == nil {
		pipeline = &pipelineFake{}
	}
	if analytics == nil {
		analytics = &analyticsFake{}
	}
	if janitor == nil {
		janitor = &janitorFake{}
	}
	if runs == nil {
		runs = &runRepoFake{}
	}
	return NewRouter(pipeline, analytics, janitor, runs, 7*24*time.Hour).Handler()
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(nil, nil, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreateRunReturnsResult(t *testing.T) {
	pipeline := &pipelineFake{result: &domain.PipelineResult{RunID: "r-1"}}
	body := `{"articles":[{"title":"A","url":"https://example.org/a","body":"text"}]}`

	rec := httptest.NewRecorder()
	newTestRouter(pipeline, nil, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(pipeline.got) != 1 || pipeline.got[0].URL != "https://example.org/a" {
		t.Fatalf("articles not forwarded: %+v", pipeline.got)
	}

	var result domain.PipelineResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.RunID != "r-1" {
		t.Fatalf("unexpected run id: %s", result.RunID)
	}
}

func TestCreateRunMapsInvalidInputTo400(t *testing.T) {
	pipeline := &pipelineFake{err: domain.WrapError(domain.ErrInvalidInput, "run batch", domain.ErrInvalidInput)}

	rec := httptest.NewRecorder()
	newTestRouter(pipeline, nil, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(`{"articles":[]}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetFunnelUnknownRunIs404(t *testing.T) {
	analytics := &analyticsFake{err: domain.ErrRunNotFound}

	rec := httptest.NewRecorder()
	newTestRouter(nil, analytics, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/missing/funnel", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetJourneyRequiresURLParam(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(nil, nil, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/r-1/journey", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetJourneyReturnsTraces(t *testing.T) {
	analytics := &analyticsFake{journey: &domain.ArticleJourney{
		RunID:        "r-1",
		ArticleURL:   "https://example.org/a",
		FinalOutcome: domain.OutcomeAccepted,
	}}

	rec := httptest.NewRecorder()
	target := "/v1/runs/r-1/journey?url=" + "https%3A%2F%2Fexample.org%2Fa"
	newTestRouter(nil, analytics, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var journey domain.ArticleJourney
	if err := json.Unmarshal(rec.Body.Bytes(), &journey); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if journey.FinalOutcome != domain.OutcomeAccepted {
		t.Fatalf("unexpected outcome: %s", journey.FinalOutcome)
	}
}

func TestGetRejectionsRequiresStageParam(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(nil, nil, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/r-1/rejections", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetRunByID(t *testing.T) {
	runs := &runRepoFake{run: &domain.Run{ID: "r-1", Status: domain.RunStatusCompleted}}

	rec := httptest.NewRecorder()
	newTestRouter(nil, nil, nil, runs).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/r-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCleanupUsesDefaultRetention(t *testing.T) {
	janitor := &janitorFake{stats: domain.SweepStats{TracesDeleted: 5}}

	rec := httptest.NewRecorder()
	newTestRouter(nil, nil, janitor, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/maintenance/cleanup", strings.NewReader(`{"dry_run":true}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if janitor.retention != 7*24*time.Hour {
		t.Fatalf("expected default retention, got %v", janitor.retention)
	}
	if !janitor.dryRun {
		t.Fatal("dry_run flag not forwarded")
	}
}

func TestCleanupOverridesRetention(t *testing.T) {
	janitor := &janitorFake{}

	rec := httptest.NewRecorder()
	newTestRouter(nil, nil, janitor, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/maintenance/cleanup", strings.NewReader(`{"retention_days":30}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if janitor.retention != 30*24*time.Hour {
		t.Fatalf("expected 30d retention, got %v", janitor.retention)
	}
}
