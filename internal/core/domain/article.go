package domain

// Article is a candidate document supplied by an upstream collector.
// The pipeline does not fetch, normalize, or deduplicate articles itself.
type Article struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Body  string `json:"body"`
}

type Decision string

const (
	DecisionPass   Decision = "pass"
	DecisionReject Decision = "reject"
)

// StageVerdict is the structured output of one judge stage evaluating one
// article. Score is nil for purely categorical stages.
type StageVerdict struct {
	Decision  Decision `json:"decision"`
	Score     *float64 `json:"score,omitempty"`
	Category  string   `json:"category,omitempty"`
	Reasoning string   `json:"reasoning"`
	LatencyMS int64    `json:"latency_ms"`
	TokensIn  int      `json:"tokens_in"`
	TokensOut int      `json:"tokens_out"`
}

// ArticleOutcome is the terminal per-article result of a pipeline run.
type ArticleOutcome struct {
	Article      Article  `json:"article"`
	Accepted     bool     `json:"accepted"`
	ContentType  string   `json:"content_type,omitempty"`
	WowScore     *float64 `json:"wow_score,omitempty"`
	ValuesScore  *float64 `json:"values_score,omitempty"`
	StagesPassed int      `json:"stages_passed"`
	RejectStage  string   `json:"reject_stage,omitempty"`
	RejectReason string   `json:"reject_reason,omitempty"`
}

// PipelineResult is the batch-level output of one run.
type PipelineResult struct {
	RunID    string           `json:"run_id"`
	Run      *Run             `json:"run"`
	Accepted []ArticleOutcome `json:"accepted"`
	Rejected []ArticleOutcome `json:"rejected"`
}
