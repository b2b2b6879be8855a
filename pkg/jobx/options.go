package jobx

import "time"

// WorkerOptions configures the polling worker.
type WorkerOptions struct {
	// PollInterval is the delay between dispatch ticks.
	PollInterval time.Duration

	// RetryBackoff is the fixed delay before a failed job becomes claimable again.
	RetryBackoff time.Duration

	// JobTimeout bounds a single processor invocation. A timeout consumes an attempt.
	JobTimeout time.Duration

	// MaxJobsPerTick caps how many jobs one tick may claim and process.
	MaxJobsPerTick int

	// StuckAfter is the age at which a processing job left behind by a crashed
	// worker is released back to pending during startup recovery.
	StuckAfter time.Duration
}

func defaultWorkerOptions() WorkerOptions {
	return WorkerOptions{
		PollInterval:   5 * time.Second,
		RetryBackoff:   30 * time.Second,
		JobTimeout:     2 * time.Minute,
		MaxJobsPerTick: 1,
		StuckAfter:     10 * time.Minute,
	}
}

// WorkerOption is a functional option for configuring the worker.
type WorkerOption func(*WorkerOptions)

// WithPollInterval sets the delay between dispatch ticks.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		if d > 0 {
			o.PollInterval = d
		}
	}
}

// WithRetryBackoff sets the fixed retry delay for failed jobs.
func WithRetryBackoff(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		if d > 0 {
			o.RetryBackoff = d
		}
	}
}

// WithJobTimeout bounds each processor invocation.
func WithJobTimeout(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		if d > 0 {
			o.JobTimeout = d
		}
	}
}

// WithMaxJobsPerTick sets how many jobs one tick may process.
func WithMaxJobsPerTick(n int) WorkerOption {
	return func(o *WorkerOptions) {
		if n > 0 {
			o.MaxJobsPerTick = n
		}
	}
}

// WithStuckAfter sets the age bound for startup stuck-job recovery.
func WithStuckAfter(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) {
		if d > 0 {
			o.StuckAfter = d
		}
	}
}
