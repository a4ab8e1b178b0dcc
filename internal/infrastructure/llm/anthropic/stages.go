package anthropic

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kirillkom/news-curator/internal/core/domain"
	"github.com/kirillkom/news-curator/internal/observability/metrics"
)

// minJudgeableChars guards against boilerplate fragments and paywalled
// stubs; anything shorter is rejected without spending a service call.
const minJudgeableChars = 50

const newsArticleCategory = "news_article"

// StageConfig selects the model and decision threshold of one judge stage.
// Threshold is inclusive: score >= threshold passes. Categorical stages
// ignore it.
type StageConfig struct {
	Model     string
	Threshold float64
	MaxTokens int
}

type stageBase struct {
	client  *Client
	cfg     StageConfig
	service string
	metrics *metrics.PipelineMetrics
}

func (s stageBase) record(stage string, verdict domain.StageVerdict) {
	s.metrics.ObserveVerdict(s.service, stage, string(verdict.Decision), verdict.LatencyMS, verdict.TokensIn, verdict.TokensOut)
}

func (s stageBase) recordError(stage string) {
	s.metrics.ObserveStageError(s.service, stage)
}

// NewsCheckStage answers one question: is this a real news article, as
// opposed to an opinion piece, listicle, ad, or other non-news content.
type NewsCheckStage struct {
	stageBase
}

func NewNewsCheckStage(client *Client, cfg StageConfig, service string, m *metrics.PipelineMetrics) *NewsCheckStage {
	return &NewsCheckStage{stageBase{client: client, cfg: cfg, service: service, metrics: m}}
}

func (s *NewsCheckStage) Name() string { return domain.StageNewsCheck }
func (s *NewsCheckStage) Ordinal() int { return 1 }

func (s *NewsCheckStage) Evaluate(ctx context.Context, article domain.Article, _ domain.PolicyRules) (domain.StageVerdict, error) {
	if len(strings.TrimSpace(article.Body)) < minJudgeableChars {
		verdict := domain.StageVerdict{
			Decision:  domain.DecisionReject,
			Category:  "other",
			Reasoning: "content too short to judge",
		}
		s.record(domain.StageNewsCheck, verdict)
		return verdict, nil
	}

	completion, err := s.client.Complete(ctx, CompletionRequest{
		Operation: domain.StageNewsCheck,
		Model:     s.cfg.Model,
		System:    newsCheckSystem,
		Prompt:    newsCheckPrompt(article),
		MaxTokens: s.cfg.MaxTokens,
		Schema:    newsCheckSchema,
		RawSchema: rawSchema(newsCheckSchemaJSON),
	})
	if err != nil {
		s.recordError(domain.StageNewsCheck)
		return domain.StageVerdict{}, err
	}

	var parsed newsCheckResponse
	if err := json.Unmarshal([]byte(completion.Text), &parsed); err != nil {
		s.recordError(domain.StageNewsCheck)
		return domain.StageVerdict{}, domain.WrapError(domain.ErrSchemaInvalid, domain.StageNewsCheck, err)
	}

	decision := domain.DecisionReject
	if parsed.ContentType == newsArticleCategory {
		decision = domain.DecisionPass
	}
	verdict := domain.StageVerdict{
		Decision:  decision,
		Category:  parsed.ContentType,
		Reasoning: parsed.Reasoning,
		LatencyMS: completion.LatencyMS,
		TokensIn:  completion.TokensIn,
		TokensOut: completion.TokensOut,
	}
	s.record(domain.StageNewsCheck, verdict)
	return verdict, nil
}

// WowFactorStage scores how remarkable a story is on [0,1].
type WowFactorStage struct {
	stageBase
}

func NewWowFactorStage(client *Client, cfg StageConfig, service string, m *metrics.PipelineMetrics) *WowFactorStage {
	return &WowFactorStage{stageBase{client: client, cfg: cfg, service: service, metrics: m}}
}

func (s *WowFactorStage) Name() string { return domain.StageWowFactor }
func (s *WowFactorStage) Ordinal() int { return 2 }

func (s *WowFactorStage) Evaluate(ctx context.Context, article domain.Article, _ domain.PolicyRules) (domain.StageVerdict, error) {
	return s.scoredEvaluate(ctx, domain.StageWowFactor, wowFactorSystem, wowFactorPrompt(article))
}

// ValuesFitStage scores editorial-values fit on [0,1] against the
// configured policy rules.
type ValuesFitStage struct {
	stageBase
}

func NewValuesFitStage(client *Client, cfg StageConfig, service string, m *metrics.PipelineMetrics) *ValuesFitStage {
	return &ValuesFitStage{stageBase{client: client, cfg: cfg, service: service, metrics: m}}
}

func (s *ValuesFitStage) Name() string { return domain.StageValuesFit }
func (s *ValuesFitStage) Ordinal() int { return 3 }

func (s *ValuesFitStage) Evaluate(ctx context.Context, article domain.Article, rules domain.PolicyRules) (domain.StageVerdict, error) {
	return s.scoredEvaluate(ctx, domain.StageValuesFit, valuesFitSystem, valuesFitPrompt(article, rules))
}

// CombinedStage is the legacy single-pass judge kept behind the
// multi-stage feature flag: one call scores news-ness, wow factor, and
// values fit together.
type CombinedStage struct {
	stageBase
}

func NewCombinedStage(client *Client, cfg StageConfig, service string, m *metrics.PipelineMetrics) *CombinedStage {
	return &CombinedStage{stageBase{client: client, cfg: cfg, service: service, metrics: m}}
}

func (s *CombinedStage) Name() string { return domain.StageCombined }
func (s *CombinedStage) Ordinal() int { return 1 }

func (s *CombinedStage) Evaluate(ctx context.Context, article domain.Article, rules domain.PolicyRules) (domain.StageVerdict, error) {
	return s.scoredEvaluate(ctx, domain.StageCombined, combinedSystem, combinedPrompt(article, rules))
}

func (s stageBase) scoredEvaluate(ctx context.Context, stage, system, prompt string) (domain.StageVerdict, error) {
	completion, err := s.client.Complete(ctx, CompletionRequest{
		Operation: stage,
		Model:     s.cfg.Model,
		System:    system,
		Prompt:    prompt,
		MaxTokens: s.cfg.MaxTokens,
		Schema:    scoredSchema,
		RawSchema: rawSchema(scoredSchemaJSON),
	})
	if err != nil {
		s.recordError(stage)
		return domain.StageVerdict{}, err
	}

	var parsed scoredResponse
	if err := json.Unmarshal([]byte(completion.Text), &parsed); err != nil {
		s.recordError(stage)
		return domain.StageVerdict{}, domain.WrapError(domain.ErrSchemaInvalid, stage, err)
	}

	decision := domain.DecisionReject
	if parsed.Score >= s.cfg.Threshold {
		decision = domain.DecisionPass
	}
	score := parsed.Score
	verdict := domain.StageVerdict{
		Decision:  decision,
		Score:     &score,
		Reasoning: parsed.Reasoning,
		LatencyMS: completion.LatencyMS,
		TokensIn:  completion.TokensIn,
		TokensOut: completion.TokensOut,
	}
	s.record(stage, verdict)
	return verdict, nil
}
