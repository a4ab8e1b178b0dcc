package domain

import "time"

// FunnelStage is the per-stage slice of a run's funnel view.
// Input equals Passed+Rejected, i.e. the number of articles the stage
// actually evaluated.
type FunnelStage struct {
	StageName    string `json:"stage_name"`
	StageOrdinal int    `json:"stage_ordinal"`
	Input        int    `json:"input"`
	Passed       int    `json:"passed"`
	Rejected     int    `json:"rejected"`
}

type Funnel struct {
	RunID      string        `json:"run_id"`
	Status     RunStatus     `json:"status"`
	InputCount int           `json:"input_count"`
	Stages     []FunnelStage `json:"stages"`
}

const (
	OutcomeAccepted   = "accepted"
	OutcomeInProgress = "in_progress"
	OutcomeUnknown    = "unknown"
)

// ArticleJourney is the ordered trace history of one article within a run
// plus the derived final outcome: "accepted", "in_progress", "unknown"
// (the run failed before the article's fate was settled), or
// "rejected_at_<stage>".
type ArticleJourney struct {
	RunID        string  `json:"run_id"`
	ArticleURL   string  `json:"article_url"`
	Traces       []Trace `json:"traces"`
	FinalOutcome string  `json:"final_outcome"`
}

// RejectionSample is one example article inside a rejection cluster.
type RejectionSample struct {
	ArticleURL   string `json:"article_url"`
	ArticleTitle string `json:"article_title"`
	Reasoning    string `json:"reasoning"`
}

// RejectionPattern is one cluster of rejections sharing a normalized
// reasoning string.
type RejectionPattern struct {
	Reason  string            `json:"reason"`
	Count   int               `json:"count"`
	Percent float64           `json:"percent"`
	Samples []RejectionSample `json:"samples"`
}

type RejectionReport struct {
	RunID      string             `json:"run_id"`
	StageName  string             `json:"stage_name"`
	TotalCount int                `json:"total_count"`
	Patterns   []RejectionPattern `json:"patterns"`
}

// SweepStats reports what a retention sweep deleted (or would delete).
type SweepStats struct {
	Cutoff        time.Time `json:"cutoff"`
	TracesDeleted int64     `json:"traces_deleted"`
	RunsDeleted   int64     `json:"runs_deleted"`
	DryRun        bool      `json:"dry_run"`
}
