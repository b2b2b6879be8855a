package jobx_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-hq/meridian/pkg/errx"
	"github.com/meridian-hq/meridian/pkg/jobx"
)

// fakeStore is an in-memory jobx.Store with the same claim semantics as the
// Postgres implementation: lowest priority first, oldest queued_at breaks ties,
// jobs with a future retry_at are not eligible.
type fakeStore struct {
	mu   sync.Mutex
	jobs map[string]*jobx.JobRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[string]*jobx.JobRecord)}
}

func (s *fakeStore) Insert(_ context.Context, job *jobx.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *fakeStore) ClaimNext(_ context.Context) (*jobx.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var eligible []*jobx.JobRecord
	for _, j := range s.jobs {
		if j.Status != jobx.JobStatusPending {
			continue
		}
		if j.RetryAt != nil && j.RetryAt.After(now) {
			continue
		}
		eligible = append(eligible, j)
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	sort.Slice(eligible, func(a, b int) bool {
		if eligible[a].Priority != eligible[b].Priority {
			return eligible[a].Priority < eligible[b].Priority
		}
		return eligible[a].QueuedAt.Before(eligible[b].QueuedAt)
	})

	j := eligible[0]
	j.Status = jobx.JobStatusProcessing
	j.StartedAt = &now
	cp := *j
	return &cp, nil
}

func (s *fakeStore) MarkCompleted(_ context.Context, id string, attempts int, result json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	now := time.Now().UTC()
	j.Status = jobx.JobStatusCompleted
	j.Attempts = attempts
	j.Result = result
	j.CompletedAt = &now
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id string, attempts int, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	now := time.Now().UTC()
	j.Status = jobx.JobStatusFailed
	j.Attempts = attempts
	j.Error = errMsg
	j.FailedAt = &now
	return nil
}

func (s *fakeStore) MarkRetry(_ context.Context, id string, attempts int, errMsg string, retryAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	j.Status = jobx.JobStatusPending
	j.Attempts = attempts
	j.Error = errMsg
	j.StartedAt = nil
	j.RetryAt = &retryAt
	return nil
}

func (s *fakeStore) GetJob(_ context.Context, id string) (*jobx.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, errors.New("job not found")
	}
	cp := *j
	return &cp, nil
}

func (s *fakeStore) Stats(_ context.Context) (*jobx.QueueStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &jobx.QueueStats{}
	for _, j := range s.jobs {
		switch j.Status {
		case jobx.JobStatusPending:
			stats.Pending++
		case jobx.JobStatusProcessing:
			stats.Processing++
		case jobx.JobStatusCompleted:
			stats.Completed++
		case jobx.JobStatusFailed:
			stats.Failed++
		}
		stats.Total++
	}
	return stats, nil
}

func (s *fakeStore) ReleaseStuck(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

// clearRetryAt makes a retrying job immediately claimable again.
func (s *fakeStore) clearRetryAt(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id].RetryAt = nil
}

func newTestWorker(store jobx.Store, registry *jobx.Registry, opts ...jobx.WorkerOption) *jobx.Worker {
	return jobx.NewWorker(store, registry, zap.NewNop(), opts...)
}

// --- Enqueue tests ---

func TestAddJob_StartsPending(t *testing.T) {
	store := newFakeStore()
	w := newTestWorker(store, jobx.NewRegistry())

	id, err := w.AddJob(context.Background(), "test.job", json.RawMessage(`{"k":1}`), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job, err := w.GetJobStatus(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != jobx.JobStatusPending {
		t.Fatalf("expected pending, got %s", job.Status)
	}
	if job.Attempts != 0 {
		t.Fatalf("expected 0 attempts, got %d", job.Attempts)
	}
	if job.MaxAttempts != jobx.DefaultMaxAttempts {
		t.Fatalf("expected default max attempts, got %d", job.MaxAttempts)
	}
}

func TestAddJob_EmptyTypeRejected(t *testing.T) {
	w := newTestWorker(newFakeStore(), jobx.NewRegistry())

	if _, err := w.AddJob(context.Background(), "", nil, 0); err == nil {
		t.Fatal("expected error for empty job type")
	}
}

func TestAddJob_UnregisteredTypeAccepted(t *testing.T) {
	w := newTestWorker(newFakeStore(), jobx.NewRegistry())

	// Enqueueing does not require a registered processor.
	if _, err := w.AddJob(context.Background(), "nobody.handles.this", nil, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- Dispatch tests ---

func TestProcessNextJob_EmptyQueue(t *testing.T) {
	w := newTestWorker(newFakeStore(), jobx.NewRegistry())

	processed, err := w.ProcessNextJob(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed {
		t.Fatal("expected no job to be processed")
	}
}

func TestProcessNextJob_Success(t *testing.T) {
	store := newFakeStore()
	registry := jobx.NewRegistry()
	registry.Register("test.ok", jobx.ProcessorFunc(func(_ context.Context, _ *jobx.JobRecord) (json.RawMessage, error) {
		return json.RawMessage(`{"done":true}`), nil
	}))
	w := newTestWorker(store, registry)

	id, _ := w.AddJob(context.Background(), "test.ok", nil, 0)

	processed, err := w.ProcessNextJob(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !processed {
		t.Fatal("expected a job to be processed")
	}

	job, _ := w.GetJobStatus(context.Background(), id)
	if job.Status != jobx.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", job.Status)
	}
	if job.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", job.Attempts)
	}
	if string(job.Result) != `{"done":true}` {
		t.Fatalf("unexpected result: %s", job.Result)
	}
}

func TestProcessNextJob_PriorityOrder(t *testing.T) {
	store := newFakeStore()
	registry := jobx.NewRegistry()

	var order []string
	registry.Register("test.ordered", jobx.ProcessorFunc(func(_ context.Context, job *jobx.JobRecord) (json.RawMessage, error) {
		order = append(order, job.ID)
		return nil, nil
	}))
	w := newTestWorker(store, registry)

	ctx := context.Background()
	id5, _ := w.AddJob(ctx, "test.ordered", nil, 5)
	id1, _ := w.AddJob(ctx, "test.ordered", nil, 1)
	id3, _ := w.AddJob(ctx, "test.ordered", nil, 3)

	for i := 0; i < 3; i++ {
		if _, err := w.ProcessNextJob(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	want := []string{id1, id3, id5}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("expected claim order %v, got %v", want, order)
		}
	}
}

func TestProcessNextJob_RetryThenExhaust(t *testing.T) {
	store := newFakeStore()
	registry := jobx.NewRegistry()
	registry.Register("test.flaky", jobx.ProcessorFunc(func(_ context.Context, _ *jobx.JobRecord) (json.RawMessage, error) {
		return nil, errors.New("transient failure")
	}))
	w := newTestWorker(store, registry, jobx.WithRetryBackoff(time.Minute))

	ctx := context.Background()
	id, _ := w.AddJob(ctx, "test.flaky", nil, 0)

	// First two attempts reschedule.
	for attempt := 1; attempt <= 2; attempt++ {
		if _, err := w.ProcessNextJob(ctx); err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", attempt, err)
		}
		job, _ := w.GetJobStatus(ctx, id)
		if job.Status != jobx.JobStatusPending {
			t.Fatalf("attempt %d: expected pending, got %s", attempt, job.Status)
		}
		if job.Attempts != attempt {
			t.Fatalf("attempt %d: expected %d attempts, got %d", attempt, attempt, job.Attempts)
		}
		if job.RetryAt == nil || !job.RetryAt.After(time.Now().UTC()) {
			t.Fatalf("attempt %d: expected a future retry_at", attempt)
		}
		store.clearRetryAt(id)
	}

	// Third attempt exhausts the budget.
	if _, err := w.ProcessNextJob(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	job, _ := w.GetJobStatus(ctx, id)
	if job.Status != jobx.JobStatusFailed {
		t.Fatalf("expected failed after max attempts, got %s", job.Status)
	}
	if job.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", job.Attempts)
	}
	if job.Error == "" {
		t.Fatal("expected error message on terminal failure")
	}
}

func TestProcessNextJob_BackoffDelaysRetry(t *testing.T) {
	store := newFakeStore()
	registry := jobx.NewRegistry()
	registry.Register("test.flaky", jobx.ProcessorFunc(func(_ context.Context, _ *jobx.JobRecord) (json.RawMessage, error) {
		return nil, errors.New("transient failure")
	}))
	w := newTestWorker(store, registry, jobx.WithRetryBackoff(time.Hour))

	ctx := context.Background()
	w.AddJob(ctx, "test.flaky", nil, 0)

	if _, err := w.ProcessNextJob(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The retry is an hour out, so the queue has nothing eligible.
	processed, err := w.ProcessNextJob(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed {
		t.Fatal("job in backoff must not be claimable")
	}
}

func TestProcessNextJob_PermanentErrorSkipsRetries(t *testing.T) {
	store := newFakeStore()
	registry := jobx.NewRegistry()
	registry.Register("test.invalid", jobx.ProcessorFunc(func(_ context.Context, _ *jobx.JobRecord) (json.RawMessage, error) {
		return nil, errx.New("bad input", errx.TypeValidation)
	}))
	w := newTestWorker(store, registry)

	ctx := context.Background()
	id, _ := w.AddJob(ctx, "test.invalid", nil, 0)

	if _, err := w.ProcessNextJob(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job, _ := w.GetJobStatus(ctx, id)
	if job.Status != jobx.JobStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.Attempts != 1 {
		t.Fatalf("permanent failure must fail on first attempt, got %d attempts", job.Attempts)
	}
}

func TestProcessNextJob_NoProcessorFailsWithoutRetry(t *testing.T) {
	store := newFakeStore()
	w := newTestWorker(store, jobx.NewRegistry())

	ctx := context.Background()
	id, _ := w.AddJob(ctx, "test.unknown", nil, 0)

	if _, err := w.ProcessNextJob(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job, _ := w.GetJobStatus(ctx, id)
	if job.Status != jobx.JobStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.Attempts != 0 {
		t.Fatalf("missing processor must not consume attempts, got %d", job.Attempts)
	}
}

func TestTypedProcessor_BadPayloadFailsPermanently(t *testing.T) {
	store := newFakeStore()
	registry := jobx.NewRegistry()

	type payload struct {
		Count int `json:"count"`
	}
	registry.Register("test.typed", jobx.Typed(func(_ context.Context, p payload, _ *jobx.JobRecord) (json.RawMessage, error) {
		return nil, nil
	}))
	w := newTestWorker(store, registry)

	ctx := context.Background()
	id, _ := w.AddJob(ctx, "test.typed", json.RawMessage(`{"count":"not a number"}`), 0)

	if _, err := w.ProcessNextJob(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job, _ := w.GetJobStatus(ctx, id)
	if job.Status != jobx.JobStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.Attempts != 1 {
		t.Fatalf("expected terminal failure on first attempt, got %d attempts", job.Attempts)
	}
}

func TestQueueStats(t *testing.T) {
	store := newFakeStore()
	registry := jobx.NewRegistry()
	registry.Register("test.ok", jobx.ProcessorFunc(func(_ context.Context, _ *jobx.JobRecord) (json.RawMessage, error) {
		return nil, nil
	}))
	w := newTestWorker(store, registry)

	ctx := context.Background()
	w.AddJob(ctx, "test.ok", nil, 0)
	w.AddJob(ctx, "test.ok", nil, 0)
	w.ProcessNextJob(ctx)

	stats, err := w.GetQueueStats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Completed != 1 || stats.Pending != 1 || stats.Total != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

// --- Lifecycle tests ---

func TestWorker_StartStop(t *testing.T) {
	w := newTestWorker(newFakeStore(), jobx.NewRegistry(),
		jobx.WithPollInterval(10*time.Millisecond))

	if w.IsRunning() {
		t.Fatal("worker must not run before Start")
	}

	w.Start()
	if !w.IsRunning() {
		t.Fatal("worker should be running after Start")
	}

	// Second Start is a no-op.
	w.Start()

	w.Stop()
	if w.IsRunning() {
		t.Fatal("worker should be stopped after Stop")
	}

	// Stop on a stopped worker is also a no-op.
	w.Stop()
}

func TestWorker_LoopProcessesJobs(t *testing.T) {
	store := newFakeStore()
	registry := jobx.NewRegistry()

	done := make(chan struct{})
	registry.Register("test.ok", jobx.ProcessorFunc(func(_ context.Context, _ *jobx.JobRecord) (json.RawMessage, error) {
		close(done)
		return nil, nil
	}))
	w := newTestWorker(store, registry, jobx.WithPollInterval(5*time.Millisecond))

	ctx := context.Background()
	id, _ := w.AddJob(ctx, "test.ok", nil, 0)

	w.Start()
	defer w.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not pick the job up")
	}

	// Give the completion write a moment to land.
	deadline := time.Now().Add(time.Second)
	for {
		job, _ := w.GetJobStatus(ctx, id)
		if job.Status == jobx.JobStatusCompleted {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected completed, got %s", job.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
