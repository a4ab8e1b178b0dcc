package config

import (
	"testing"
	"time"
)

func TestLoadIncludesPipelineDefaults(t *testing.T) {
	t.Setenv("WOW_SCORE_THRESHOLD", "")
	t.Setenv("VALUES_SCORE_THRESHOLD", "")
	t.Setenv("TRACE_RETENTION_DAYS", "")
	t.Setenv("PIPELINE_MULTISTAGE", "")
	t.Setenv("CONTENT_CHAR_LIMIT", "")
	t.Setenv("RETRY_INITIAL_BACKOFF", "")

	cfg := Load()
	if cfg.WowThreshold != 0.5 {
		t.Fatalf("expected default wow threshold 0.5, got %v", cfg.WowThreshold)
	}
	if cfg.ValuesThreshold != 0.5 {
		t.Fatalf("expected default values threshold 0.5, got %v", cfg.ValuesThreshold)
	}
	if cfg.TraceRetentionDays != 7 {
		t.Fatalf("expected default retention 7 days, got %d", cfg.TraceRetentionDays)
	}
	if !cfg.MultiStageEnabled {
		t.Fatalf("expected multi-stage pipeline enabled by default")
	}
	if cfg.ContentCharLimit != 8000 {
		t.Fatalf("expected default content limit 8000, got %d", cfg.ContentCharLimit)
	}
	if cfg.RetryInitialBackoff != 5*time.Second {
		t.Fatalf("expected default initial backoff 5s, got %v", cfg.RetryInitialBackoff)
	}
}

func TestLoadParsesPipelineOverrides(t *testing.T) {
	t.Setenv("WOW_SCORE_THRESHOLD", "0.4")
	t.Setenv("VALUES_SCORE_THRESHOLD", "0.65")
	t.Setenv("PIPELINE_MULTISTAGE", "false")
	t.Setenv("PIPELINE_WORKERS", "8")
	t.Setenv("TRACE_RETENTION_DAYS", "14")

	cfg := Load()
	if cfg.WowThreshold != 0.4 {
		t.Fatalf("expected wow threshold override 0.4, got %v", cfg.WowThreshold)
	}
	if cfg.ValuesThreshold != 0.65 {
		t.Fatalf("expected values threshold override 0.65, got %v", cfg.ValuesThreshold)
	}
	if cfg.MultiStageEnabled {
		t.Fatalf("expected multi-stage pipeline disabled")
	}
	if cfg.PipelineWorkers != 8 {
		t.Fatalf("expected 8 pipeline workers, got %d", cfg.PipelineWorkers)
	}
	if cfg.TraceRetentionDays != 14 {
		t.Fatalf("expected retention override 14, got %d", cfg.TraceRetentionDays)
	}
}

func TestLoadFallsBackOnUnparsableValues(t *testing.T) {
	t.Setenv("WOW_SCORE_THRESHOLD", "not-a-number")
	t.Setenv("PIPELINE_WORKERS", "many")

	cfg := Load()
	if cfg.WowThreshold != 0.5 {
		t.Fatalf("expected fallback wow threshold 0.5, got %v", cfg.WowThreshold)
	}
	if cfg.PipelineWorkers != 4 {
		t.Fatalf("expected fallback workers 4, got %d", cfg.PipelineWorkers)
	}
}
