package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/news-curator/internal/core/domain"
	"github.com/kirillkom/news-curator/internal/infrastructure/resilience"
)

func fastExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})
}

func testClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	return New(Config{
		BaseURL:           serverURL,
		APIKey:            "test-key",
		RequestTimeout:    5 * time.Second,
		RequestsPerSecond: 1000,
		Executor:          fastExecutor(),
	})
}

func messagesResponseBody(t *testing.T, payload any) []byte {
	t.Helper()
	text, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	body, err := json.Marshal(map[string]any{
		"content": []map[string]any{{"type": "text", "text": string(text)}},
		"usage":   map[string]any{"input_tokens": 120, "output_tokens": 40},
	})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return body
}

func longBody() string {
	return "The county fair drew a record crowd this weekend after a local farmer entered a pumpkin weighing over nine hundred pounds."
}

func TestNewsCheckStagePassesOnNewsArticle(t *testing.T) {
	var sawVersion, sawKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawVersion = r.Header.Get("anthropic-version")
		sawKey = r.Header.Get("x-api-key")
		w.Write(messagesResponseBody(t, map[string]any{
			"content_type": "news_article",
			"reasoning":    "reported event with named sources",
		}))
	}))
	defer server.Close()

	stage := NewNewsCheckStage(testClient(t, server.URL), StageConfig{Model: "claude-sonnet-4-5"}, "test", nil)
	verdict, err := stage.Evaluate(context.Background(), domain.Article{Title: "Fair", URL: "https://example.org/fair", Body: longBody()}, domain.PolicyRules{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Decision != domain.DecisionPass {
		t.Fatalf("expected pass, got %s", verdict.Decision)
	}
	if verdict.Category != "news_article" {
		t.Fatalf("unexpected category: %s", verdict.Category)
	}
	if verdict.Score != nil {
		t.Fatalf("news check must not carry a score")
	}
	if verdict.TokensIn != 120 || verdict.TokensOut != 40 {
		t.Fatalf("unexpected token counts: %d/%d", verdict.TokensIn, verdict.TokensOut)
	}
	if sawVersion != apiVersion {
		t.Fatalf("unexpected anthropic-version header: %q", sawVersion)
	}
	if sawKey != "test-key" {
		t.Fatalf("unexpected x-api-key header: %q", sawKey)
	}
}

func TestNewsCheckStageRejectsNonNewsCategory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(messagesResponseBody(t, map[string]any{
			"content_type": "listicle",
			"reasoning":    "numbered tips, no reported event",
		}))
	}))
	defer server.Close()

	stage := NewNewsCheckStage(testClient(t, server.URL), StageConfig{Model: "claude-sonnet-4-5"}, "test", nil)
	verdict, err := stage.Evaluate(context.Background(), domain.Article{Title: "Ten tips", Body: longBody()}, domain.PolicyRules{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Decision != domain.DecisionReject {
		t.Fatalf("expected reject, got %s", verdict.Decision)
	}
	if verdict.Category != "listicle" {
		t.Fatalf("unexpected category: %s", verdict.Category)
	}
}

func TestNewsCheckStageRejectsShortContentWithoutCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("short content must not reach the service")
	}))
	defer server.Close()

	stage := NewNewsCheckStage(testClient(t, server.URL), StageConfig{Model: "claude-sonnet-4-5"}, "test", nil)
	verdict, err := stage.Evaluate(context.Background(), domain.Article{Title: "Stub", Body: "   too short   "}, domain.PolicyRules{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Decision != domain.DecisionReject {
		t.Fatalf("expected reject, got %s", verdict.Decision)
	}
	if verdict.TokensIn != 0 || verdict.TokensOut != 0 {
		t.Fatalf("short-content reject must not report token usage")
	}
}

func TestScoredStageThresholdIsInclusive(t *testing.T) {
	cases := []struct {
		name     string
		score    float64
		expected domain.Decision
	}{
		{name: "at threshold passes", score: 0.5, expected: domain.DecisionPass},
		{name: "below threshold rejects", score: 0.49, expected: domain.DecisionReject},
		{name: "above threshold passes", score: 0.92, expected: domain.DecisionPass},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write(messagesResponseBody(t, map[string]any{
					"score":     tc.score,
					"reasoning": "judged",
				}))
			}))
			defer server.Close()

			stage := NewWowFactorStage(testClient(t, server.URL), StageConfig{Model: "claude-sonnet-4-5", Threshold: 0.5}, "test", nil)
			verdict, err := stage.Evaluate(context.Background(), domain.Article{Title: "Story", Body: longBody()}, domain.PolicyRules{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if verdict.Decision != tc.expected {
				t.Fatalf("score %v: expected %s, got %s", tc.score, tc.expected, verdict.Decision)
			}
			if verdict.Score == nil || *verdict.Score != tc.score {
				t.Fatalf("verdict must carry the raw score")
			}
		})
	}
}

func TestValuesFitPromptCarriesRules(t *testing.T) {
	var prompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && len(req.Messages) > 0 {
			prompt = req.Messages[0].Content
		}
		w.Write(messagesResponseBody(t, map[string]any{"score": 0.8, "reasoning": "fits"}))
	}))
	defer server.Close()

	rules := domain.PolicyRules{MustHave: []string{"Barn raisings"}, MustAvoid: []string{"Casino openings"}}
	stage := NewValuesFitStage(testClient(t, server.URL), StageConfig{Model: "claude-sonnet-4-5", Threshold: 0.5}, "test", nil)
	if _, err := stage.Evaluate(context.Background(), domain.Article{Title: "Story", Body: longBody()}, rules); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Barn raisings", "Casino openings"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing rule %q", want)
		}
	}
}

func TestCompleteRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write(messagesResponseBody(t, map[string]any{"score": 0.7, "reasoning": "recovered"}))
	}))
	defer server.Close()

	stage := NewWowFactorStage(testClient(t, server.URL), StageConfig{Model: "claude-sonnet-4-5", Threshold: 0.5}, "test", nil)
	verdict, err := stage.Evaluate(context.Background(), domain.Article{Title: "Story", Body: longBody()}, domain.PolicyRules{})
	if err != nil {
		t.Fatalf("expected recovery after retries, got %v", err)
	}
	if verdict.Decision != domain.DecisionPass {
		t.Fatalf("expected pass after recovery, got %s", verdict.Decision)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestCompleteFailsOnPersistentSchemaViolation(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write(messagesResponseBody(t, map[string]any{"verdict": "yes"}))
	}))
	defer server.Close()

	stage := NewWowFactorStage(testClient(t, server.URL), StageConfig{Model: "claude-sonnet-4-5", Threshold: 0.5}, "test", nil)
	_, err := stage.Evaluate(context.Background(), domain.Article{Title: "Story", Body: longBody()}, domain.PolicyRules{})
	if err == nil {
		t.Fatal("expected schema validation error")
	}
	if !domain.IsKind(err, domain.ErrSchemaInvalid) {
		t.Fatalf("expected schema-invalid error, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected schema failures to be retried, got %d attempts", got)
	}
}

func TestCompleteDoesNotRetryAuthFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"type":"authentication_error"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	stage := NewWowFactorStage(testClient(t, server.URL), StageConfig{Model: "claude-sonnet-4-5", Threshold: 0.5}, "test", nil)
	_, err := stage.Evaluate(context.Background(), domain.Article{Title: "Story", Body: longBody()}, domain.PolicyRules{})
	if err == nil {
		t.Fatal("expected auth error")
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("auth failures must not retry, got %d attempts", got)
	}
}
