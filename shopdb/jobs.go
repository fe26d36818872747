package shopdb

import (
	"context"
	"database/sql"
	"time"
)

type EnqueueJobParams struct {
	ID          string
	Kind        string
	Payload     string
	RunAt       int64
	MaxAttempts int64
}

const jobColumns = `id, kind, payload, status, run_at, claimed_at, attempts, max_attempts, last_error, created_at, finished_at`

func (q *Queries) EnqueueJob(ctx context.Context, p EnqueueJobParams) (Job, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO jobs (id, kind, payload, status, run_at, max_attempts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+jobColumns,
		p.ID, p.Kind, p.Payload, JobStatusPending, p.RunAt, maxAttempts, time.Now().Unix())
	return scanJob(row)
}

func (q *Queries) GetJob(ctx context.Context, id string) (Job, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

func scanJob(row *sql.Row) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.Kind, &j.Payload, &j.Status, &j.RunAt, &j.ClaimedAt,
		&j.Attempts, &j.MaxAttempts, &j.LastError, &j.CreatedAt, &j.FinishedAt)
	return j, err
}

// ClaimDueJob atomically moves the oldest due pending job to running and
// returns it. sql.ErrNoRows means nothing is due.
func (q *Queries) ClaimDueJob(ctx context.Context, now int64) (Job, error) {
	row := q.db.QueryRowContext(ctx,
		`UPDATE jobs SET status = ?, claimed_at = ?, attempts = attempts + 1
		 WHERE id = (
			SELECT id FROM jobs WHERE status = ? AND run_at <= ? ORDER BY run_at, created_at LIMIT 1
		 )
		 RETURNING `+jobColumns,
		JobStatusRunning, now, JobStatusPending, now)
	return scanJob(row)
}

func (q *Queries) MarkJobDone(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, finished_at = ? WHERE id = ?`,
		JobStatusDone, time.Now().Unix(), id)
	return err
}

// RetryJob returns a running job to the queue after a failed attempt.
func (q *Queries) RetryJob(ctx context.Context, id string, runAt int64, lastError string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, run_at = ?, claimed_at = NULL, last_error = ? WHERE id = ?`,
		JobStatusPending, runAt, lastError, id)
	return err
}

func (q *Queries) MarkJobFailed(ctx context.Context, id string, lastError string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, finished_at = ?, last_error = ? WHERE id = ?`,
		JobStatusFailed, time.Now().Unix(), lastError, id)
	return err
}

// ReclaimStuckJobs requeues running jobs claimed before the cutoff. This is
// the acks-late path: a worker that died mid-job loses its claim and the job
// runs again elsewhere.
func (q *Queries) ReclaimStuckJobs(ctx context.Context, claimedBefore int64) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, claimed_at = NULL
		 WHERE status = ? AND claimed_at IS NOT NULL AND claimed_at <= ?`,
		JobStatusPending, JobStatusRunning, claimedBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PurgeFinishedJobs deletes done and failed jobs finished before the cutoff.
func (q *Queries) PurgeFinishedJobs(ctx context.Context, finishedBefore int64) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE status IN (?, ?) AND finished_at IS NOT NULL AND finished_at <= ?`,
		JobStatusDone, JobStatusFailed, finishedBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) CountJobsByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE status = ?`, status).Scan(&n)
	return n, err
}
