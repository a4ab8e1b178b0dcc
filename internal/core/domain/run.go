package domain

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one execution of the judging pipeline over a batch of articles.
// Pass counts stay nil until the run is finalized; once status leaves
// "running" the record is immutable.
type Run struct {
	ID          string     `json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      RunStatus  `json:"status"`
	InputCount  int        `json:"input_count"`
	Stage1Pass  *int       `json:"stage1_pass,omitempty"`
	Stage2Pass  *int       `json:"stage2_pass,omitempty"`
	Stage3Pass  *int       `json:"stage3_pass,omitempty"`
	ErrorMsg    string     `json:"error_message,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
