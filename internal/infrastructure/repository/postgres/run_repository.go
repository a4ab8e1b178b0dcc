package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/news-curator/internal/core/domain"
)

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) CreateRun(ctx context.Context, run *domain.Run) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO pipeline_runs (id, started_at, completed_at, status, input_count, stage1_pass, stage2_pass, stage3_pass, error_message, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, run.ID, run.StartedAt, run.CompletedAt, string(run.Status), run.InputCount, run.Stage1Pass, run.Stage2Pass, run.Stage3Pass, run.ErrorMsg, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *RunRepository) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, started_at, completed_at, status, input_count, stage1_pass, stage2_pass, stage3_pass, error_message, created_at
FROM pipeline_runs
WHERE id = $1
`, id)

	var run domain.Run
	var status string
	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&run.CompletedAt,
		&status,
		&run.InputCount,
		&run.Stage1Pass,
		&run.Stage2Pass,
		&run.Stage3Pass,
		&run.ErrorMsg,
		&run.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id=%s", domain.ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Status = domain.RunStatus(status)
	return &run, nil
}

// FinalizeRun writes the terminal state exactly once: the guard on
// status = 'running' keeps finalized runs immutable.
func (r *RunRepository) FinalizeRun(ctx context.Context, run *domain.Run) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE pipeline_runs
SET completed_at = $2, status = $3, input_count = $4, stage1_pass = $5, stage2_pass = $6, stage3_pass = $7, error_message = $8
WHERE id = $1 AND status = 'running'
`, run.ID, run.CompletedAt, string(run.Status), run.InputCount, run.Stage1Pass, run.Stage2Pass, run.Stage3Pass, run.ErrorMsg)
	if err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize run rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: id=%s (not running)", domain.ErrRunNotFound, run.ID)
	}
	return nil
}

// CountStartedBefore counts runs a sweep with this cutoff would remove:
// started before the cutoff and without any trace young enough to survive
// the trace deletion.
func (r *RunRepository) CountStartedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM pipeline_runs p
WHERE p.started_at < $1
  AND NOT EXISTS (
	SELECT 1 FROM judge_traces t WHERE t.run_id = p.id AND t.created_at >= $1
  )
`, cutoff)

	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count runs before cutoff: %w", err)
	}
	return count, nil
}

func (r *RunRepository) DeleteRunsWithoutTracesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
DELETE FROM pipeline_runs p
WHERE p.started_at < $1
  AND NOT EXISTS (
	SELECT 1 FROM judge_traces t WHERE t.run_id = p.id
  )
`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale runs: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale runs rows affected: %w", err)
	}
	return rows, nil
}
