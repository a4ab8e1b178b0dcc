package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/news-curator/internal/core/domain"
)

type TraceRepository struct {
	db *sql.DB
}

func NewTraceRepository(db *sql.DB) *TraceRepository {
	return &TraceRepository{db: db}
}

// Insert is idempotent per (run, article, stage ordinal): a replayed write
// of the same verdict slot is a no-op rather than a duplicate row.
func (r *TraceRepository) Insert(ctx context.Context, trace *domain.Trace) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO judge_traces (
	id, run_id, article_url, article_title, stage_name, stage_ordinal, decision, score, reasoning, tokens_in, tokens_out, latency_ms, content_chars, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (run_id, article_url, stage_ordinal) DO NOTHING
`,
		trace.ID, trace.RunID, trace.ArticleURL, trace.ArticleTitle, trace.StageName, trace.StageOrdinal,
		string(trace.Decision), trace.Score, trace.Reasoning, trace.TokensIn, trace.TokensOut,
		trace.LatencyMS, trace.ContentChars, trace.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trace: %w", err)
	}
	return nil
}

func (r *TraceRepository) ListByRunAndURL(ctx context.Context, runID, articleURL string) ([]domain.Trace, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, run_id, article_url, article_title, stage_name, stage_ordinal, decision, score, reasoning, tokens_in, tokens_out, latency_ms, content_chars, created_at
FROM judge_traces
WHERE run_id = $1 AND article_url = $2
ORDER BY stage_ordinal ASC
`, runID, articleURL)
	if err != nil {
		return nil, fmt.Errorf("list traces by article: %w", err)
	}
	defer rows.Close()

	return collectTraces(rows)
}

func (r *TraceRepository) ListRejectionsByStage(ctx context.Context, runID, stageName string) ([]domain.Trace, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, run_id, article_url, article_title, stage_name, stage_ordinal, decision, score, reasoning, tokens_in, tokens_out, latency_ms, content_chars, created_at
FROM judge_traces
WHERE run_id = $1 AND stage_name = $2 AND decision = 'reject'
ORDER BY created_at ASC
`, runID, stageName)
	if err != nil {
		return nil, fmt.Errorf("list rejections by stage: %w", err)
	}
	defer rows.Close()

	return collectTraces(rows)
}

func (r *TraceRepository) StageCounts(ctx context.Context, runID string) ([]domain.StageDecisionCount, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT stage_name, stage_ordinal, decision, COUNT(*)
FROM judge_traces
WHERE run_id = $1
GROUP BY stage_name, stage_ordinal, decision
ORDER BY stage_ordinal ASC, decision ASC
`, runID)
	if err != nil {
		return nil, fmt.Errorf("stage counts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.StageDecisionCount, 0)
	for rows.Next() {
		var count domain.StageDecisionCount
		var decision string
		if err := rows.Scan(&count.StageName, &count.StageOrdinal, &decision, &count.Count); err != nil {
			return nil, fmt.Errorf("scan stage count: %w", err)
		}
		count.Decision = domain.Decision(decision)
		out = append(out, count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage counts: %w", err)
	}
	return out, nil
}

func (r *TraceRepository) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM judge_traces WHERE created_at < $1`, cutoff)

	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count traces before cutoff: %w", err)
	}
	return count, nil
}

func (r *TraceRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM judge_traces WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale traces: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale traces rows affected: %w", err)
	}
	return rows, nil
}

type traceScanner interface {
	Scan(dest ...interface{}) error
}

func collectTraces(rows *sql.Rows) ([]domain.Trace, error) {
	out := make([]domain.Trace, 0)
	for rows.Next() {
		trace, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, trace)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate traces: %w", err)
	}
	return out, nil
}

func scanTrace(row traceScanner) (domain.Trace, error) {
	var trace domain.Trace
	var decision string
	err := row.Scan(
		&trace.ID,
		&trace.RunID,
		&trace.ArticleURL,
		&trace.ArticleTitle,
		&trace.StageName,
		&trace.StageOrdinal,
		&decision,
		&trace.Score,
		&trace.Reasoning,
		&trace.TokensIn,
		&trace.TokensOut,
		&trace.LatencyMS,
		&trace.ContentChars,
		&trace.CreatedAt,
	)
	if err != nil {
		return domain.Trace{}, fmt.Errorf("scan trace: %w", err)
	}
	trace.Decision = domain.Decision(decision)
	return trace, nil
}
