package domain

import "time"

// Stage names as persisted in traces and exposed in analytics. Ordinals
// give the evaluation order; the legacy combined stage is the whole
// pipeline collapsed into ordinal 1.
const (
	StageNewsCheck = "news_check"
	StageWowFactor = "wow_factor"
	StageValuesFit = "values_fit"
	StageCombined  = "combined_check"
)

// Trace records exactly one stage verdict on one article within one run.
// Traces are append-only; only the retention sweep deletes them.
//
// ContentChars holds the article body length before truncation so the
// operator can spot "too long to judge properly" cases later.
type Trace struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	ArticleURL   string    `json:"article_url"`
	ArticleTitle string    `json:"article_title"`
	StageName    string    `json:"stage_name"`
	StageOrdinal int       `json:"stage_ordinal"`
	Decision     Decision  `json:"decision"`
	Score        *float64  `json:"score,omitempty"`
	Reasoning    string    `json:"reasoning"`
	TokensIn     int       `json:"tokens_in"`
	TokensOut    int       `json:"tokens_out"`
	LatencyMS    int64     `json:"latency_ms"`
	ContentChars int       `json:"content_chars"`
	CreatedAt    time.Time `json:"created_at"`
}

// StageDecisionCount is one row of the grouped (stage, decision) aggregation
// the funnel view is derived from.
type StageDecisionCount struct {
	StageName    string
	StageOrdinal int
	Decision     Decision
	Count        int
}
