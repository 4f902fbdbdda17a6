package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var _ JobRepository = (*JobRepo)(nil)

// JobRepo handles the job queue table
type JobRepo struct {
	db *DB
}

func NewJobRepository(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

const jobColumns = `id, content_id, status, COALESCE(error_kind, ''), COALESCE(error_message, ''),
	started_at, finished_at, created_at, updated_at`

func scanJob(row scanner) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.ContentID, &j.Status, &j.ErrorKind, &j.ErrorMessage,
		&j.StartedAt, &j.FinishedAt, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

// ClaimNext atomically moves the oldest pending job to running and returns it.
// It returns (nil, nil) when no job is pending or another worker won the race.
func (r *JobRepo) ClaimNext(ctx context.Context, at time.Time) (*Job, error) {
	lock := ""
	if r.db.driver == DriverPostgres {
		lock = " FOR UPDATE SKIP LOCKED"
	}

	var id string
	err := r.db.QueryRowContext(ctx, `
		UPDATE jobs
		SET status = ?, started_at = ?, finished_at = NULL, updated_at = ?
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = ?
			ORDER BY created_at, id
			LIMIT 1`+lock+`
		)
		AND status = ?
		RETURNING id
	`, string(JobStatusRunning), at.UTC(), at.UTC(), string(JobStatusPending), string(JobStatusPending)).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	job, err := r.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("claimed job %s disappeared", id)
	}

	return job, nil
}

func (r *JobRepo) GetJob(ctx context.Context, id string) (*Job, error) {
	job, err := scanJob(r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

func (r *JobRepo) MarkDone(ctx context.Context, id string, at time.Time) error {
	return r.finish(ctx, id, JobStatusDone, nil, nil, at)
}

func (r *JobRepo) MarkError(ctx context.Context, id string, kind string, message string, at time.Time) error {
	return r.finish(ctx, id, JobStatusError, nullString(kind), nullString(message), at)
}

func (r *JobRepo) finish(ctx context.Context, id string, status JobStatus, kind, message any, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, error_kind = ?, error_message = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(status), kind, message, at.UTC(), at.UTC(), id, string(JobStatusRunning))
	if err != nil {
		return fmt.Errorf("failed to mark job %s: %w", status, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %s is not running", id)
	}

	return nil
}

// Requeue moves a job in error back to pending. It reports false when the job is not in error.
func (r *JobRepo) Requeue(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, error_kind = NULL, error_message = NULL, started_at = NULL, finished_at = NULL, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(JobStatusPending), at.UTC(), id, string(JobStatusError))
	if err != nil {
		return false, fmt.Errorf("failed to requeue job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w", err)
	}

	return affected > 0, nil
}

// Release returns a running job to pending without recording a failure.
func (r *JobRepo) Release(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, started_at = NULL, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(JobStatusPending), at.UTC(), id, string(JobStatusRunning))
	if err != nil {
		return fmt.Errorf("failed to release job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %s is not running", id)
	}

	return nil
}

// ReclaimStuck returns running jobs started before the threshold to pending
func (r *JobRepo) ReclaimStuck(ctx context.Context, startedBefore time.Time, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, started_at = NULL, updated_at = ?
		WHERE status = ? AND started_at < ?
	`, string(JobStatusPending), at.UTC(), string(JobStatusRunning), startedBefore.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stuck jobs: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read update result: %w", err)
	}

	return affected, nil
}

// ListJobs returns the newest jobs, optionally filtered by status
func (r *JobRepo) ListJobs(ctx context.Context, status JobStatus, limit int) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}

	return jobs, nil
}

func (r *JobRepo) CountByStatus(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := map[JobStatus]int{
		JobStatusPending: 0,
		JobStatusRunning: 0,
		JobStatusDone:    0,
		JobStatusError:   0,
	}
	for rows.Next() {
		var status JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job counts: %w", err)
	}

	return counts, nil
}
