package jobxpg

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/meridian-hq/meridian/pkg/errx"
	"github.com/meridian-hq/meridian/pkg/jobx"
)

// Store implements jobx.Store on top of PostgreSQL. The claim step is a
// single conditional UPDATE with FOR UPDATE SKIP LOCKED, so concurrent
// claimers can never double-claim a job.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const jobColumns = `id, type, payload, status, priority, attempts, max_attempts,
	result, error, queued_at, started_at, completed_at, failed_at, retry_at`

// Insert persists a new job record.
func (s *Store) Insert(ctx context.Context, job *jobx.JobRecord) error {
	query := `
		INSERT INTO jobs (
			id, type, payload, status, priority, attempts, max_attempts, queued_at
		) VALUES (
			:id, :type, :payload, :status, :priority, :attempts, :max_attempts, :queued_at
		)`

	_, err := s.db.NamedExecContext(ctx, query, toPersistence(job))
	if err != nil {
		return errx.Wrap(err, "failed to insert job", errx.TypeInternal).
			WithDetail("job_id", job.ID)
	}
	return nil
}

// ClaimNext atomically claims the highest-priority eligible pending job.
// Eligible means pending with no retry_at, or a retry_at that has passed.
// Ordering is priority ASC (lower value wins), then queued_at ASC.
func (s *Store) ClaimNext(ctx context.Context) (*jobx.JobRecord, error) {
	query := `
		UPDATE jobs SET status = 'processing', started_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending'
			  AND (retry_at IS NULL OR retry_at <= now())
			ORDER BY priority ASC, queued_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	var p jobPersistence
	err := s.db.GetContext(ctx, &p, query)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errx.Wrap(err, "failed to claim next job", errx.TypeInternal)
	}

	job := toDomain(p)
	return &job, nil
}

// MarkCompleted moves a job to its successful terminal state.
func (s *Store) MarkCompleted(ctx context.Context, id string, attempts int, result json.RawMessage) error {
	query := `
		UPDATE jobs SET
			status = 'completed',
			attempts = $2,
			result = $3,
			error = '',
			completed_at = now()
		WHERE id = $1 AND status = 'processing'`

	return s.finishJob(ctx, query, "complete", id, attempts, []byte(result))
}

// MarkFailed moves a job to its failed terminal state.
func (s *Store) MarkFailed(ctx context.Context, id string, attempts int, errMsg string) error {
	query := `
		UPDATE jobs SET
			status = 'failed',
			attempts = $2,
			error = $3,
			failed_at = now()
		WHERE id = $1 AND status = 'processing'`

	return s.finishJob(ctx, query, "fail", id, attempts, errMsg)
}

// MarkRetry returns a failed job to pending with a retry time; the job is
// not claimable again until retry_at passes.
func (s *Store) MarkRetry(ctx context.Context, id string, attempts int, errMsg string, retryAt time.Time) error {
	query := `
		UPDATE jobs SET
			status = 'pending',
			attempts = $2,
			error = $3,
			started_at = NULL,
			retry_at = $4
		WHERE id = $1 AND status = 'processing'`

	result, err := s.db.ExecContext(ctx, query, id, attempts, errMsg, retryAt)
	if err != nil {
		return errx.Wrap(err, "failed to schedule job retry", errx.TypeInternal).
			WithDetail("job_id", id)
	}
	return checkAffected(result, id)
}

func (s *Store) finishJob(ctx context.Context, query, op, id string, attempts int, arg any) error {
	result, err := s.db.ExecContext(ctx, query, id, attempts, arg)
	if err != nil {
		return errx.Wrapf(err, errx.TypeInternal, "failed to %s job", op).
			WithDetail("job_id", id)
	}
	return checkAffected(result, id)
}

// GetJob fetches a job by ID.
func (s *Store) GetJob(ctx context.Context, id string) (*jobx.JobRecord, error) {
	var p jobPersistence
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	err := s.db.GetContext(ctx, &p, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errNotFound(id)
		}
		return nil, errx.Wrap(err, "failed to load job", errx.TypeInternal).
			WithDetail("job_id", id)
	}

	job := toDomain(p)
	return &job, nil
}

// Stats returns per-status job counts.
func (s *Store) Stats(ctx context.Context) (*jobx.QueueStats, error) {
	rows := []struct {
		Status string `db:"status"`
		Count  int64  `db:"count"`
	}{}

	query := `SELECT status, count(*) AS count FROM jobs GROUP BY status`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errx.Wrap(err, "failed to load queue stats", errx.TypeInternal)
	}

	stats := &jobx.QueueStats{}
	for _, r := range rows {
		switch jobx.JobStatus(r.Status) {
		case jobx.JobStatusPending:
			stats.Pending = r.Count
		case jobx.JobStatusProcessing:
			stats.Processing = r.Count
		case jobx.JobStatusCompleted:
			stats.Completed = r.Count
		case jobx.JobStatusFailed:
			stats.Failed = r.Count
		}
		stats.Total += r.Count
	}
	return stats, nil
}

// ReleaseStuck returns processing jobs older than the bound to pending.
// These are jobs a crashed worker never finished.
func (s *Store) ReleaseStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	query := `
		UPDATE jobs SET
			status = 'pending',
			started_at = NULL,
			error = 'released after worker stall'
		WHERE status = 'processing' AND started_at < $1`

	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, errx.Wrap(err, "failed to release stuck jobs", errx.TypeInternal)
	}
	return result.RowsAffected()
}

func checkAffected(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to read rows affected", errx.TypeInternal)
	}
	if n == 0 {
		return errNotFound(id)
	}
	return nil
}

func errNotFound(id string) error {
	return jobx.NewError(jobx.ErrJobNotFound).WithDetail("job_id", id)
}

type jobPersistence struct {
	ID          string         `db:"id"`
	Type        string         `db:"type"`
	Payload     []byte         `db:"payload"`
	Status      string         `db:"status"`
	Priority    int            `db:"priority"`
	Attempts    int            `db:"attempts"`
	MaxAttempts int            `db:"max_attempts"`
	Result      []byte         `db:"result"`
	Error       sql.NullString `db:"error"`
	QueuedAt    time.Time      `db:"queued_at"`
	StartedAt   *time.Time     `db:"started_at"`
	CompletedAt *time.Time     `db:"completed_at"`
	FailedAt    *time.Time     `db:"failed_at"`
	RetryAt     *time.Time     `db:"retry_at"`
}

func toPersistence(job *jobx.JobRecord) jobPersistence {
	payload := []byte(job.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	return jobPersistence{
		ID:          job.ID,
		Type:        job.Type,
		Payload:     payload,
		Status:      string(job.Status),
		Priority:    job.Priority,
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
		QueuedAt:    job.QueuedAt,
	}
}

func toDomain(p jobPersistence) jobx.JobRecord {
	return jobx.JobRecord{
		ID:          p.ID,
		Type:        p.Type,
		Payload:     json.RawMessage(p.Payload),
		Status:      jobx.JobStatus(p.Status),
		Priority:    p.Priority,
		Attempts:    p.Attempts,
		MaxAttempts: p.MaxAttempts,
		Result:      json.RawMessage(p.Result),
		Error:       p.Error.String,
		QueuedAt:    p.QueuedAt,
		StartedAt:   p.StartedAt,
		CompletedAt: p.CompletedAt,
		FailedAt:    p.FailedAt,
		RetryAt:     p.RetryAt,
	}
}
