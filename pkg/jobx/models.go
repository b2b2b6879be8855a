package jobx

import (
	"encoding/json"
	"time"
)

// JobStatus represents the current state of a job.
//
// Transitions are monotonic: pending → processing → {completed | failed}.
// A failed attempt with retries remaining moves the job back to pending with
// retry_at set; once failed is reached terminally the job never leaves it.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// DefaultMaxAttempts is used when a job is enqueued without an explicit limit.
const DefaultMaxAttempts = 3

// JobRecord is a persisted unit of asynchronous work.
//
// Priority is ascending-wins: lower numeric values are claimed first. Ties
// break on QueuedAt, oldest first.
type JobRecord struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      JobStatus       `json:"status"`
	Priority    int             `json:"priority"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	QueuedAt    time.Time       `json:"queued_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	FailedAt    *time.Time      `json:"failed_at,omitempty"`
	RetryAt     *time.Time      `json:"retry_at,omitempty"`
}

// Terminal reports whether the job has reached a terminal status.
func (j *JobRecord) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// QueueStats holds per-status job counts.
type QueueStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Total      int64 `json:"total"`
}
