package jobx

import (
	"context"
	"encoding/json"
	"sync"
)

// Processor handles jobs of one type. The returned raw message is stored as
// the job's result on success.
type Processor interface {
	Process(ctx context.Context, job *JobRecord) (json.RawMessage, error)
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(ctx context.Context, job *JobRecord) (json.RawMessage, error)

func (f ProcessorFunc) Process(ctx context.Context, job *JobRecord) (json.RawMessage, error) {
	return f(ctx, job)
}

// Registry maps job types to their processors. Registration is last-write-wins;
// re-registering a type silently replaces the previous processor.
type Registry struct {
	mu    sync.RWMutex
	procs map[string]Processor
}

func NewRegistry() *Registry {
	return &Registry{procs: make(map[string]Processor)}
}

// Register associates a processor with a job type.
func (r *Registry) Register(jobType string, p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[jobType] = p
}

// Lookup returns the processor for a job type.
func (r *Registry) Lookup(jobType string) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.procs[jobType]
	return p, ok
}

// Types returns the registered job types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.procs))
	for t := range r.procs {
		types = append(types, t)
	}
	return types
}

// Typed wraps a handler whose payload shape is known at compile time. The raw
// payload is decoded into P before the handler runs; a payload that does not
// decode fails the job permanently rather than burning retries.
func Typed[P any](fn func(ctx context.Context, payload P, job *JobRecord) (json.RawMessage, error)) Processor {
	return ProcessorFunc(func(ctx context.Context, job *JobRecord) (json.RawMessage, error) {
		var payload P
		if len(job.Payload) > 0 {
			if err := json.Unmarshal(job.Payload, &payload); err != nil {
				return nil, jobxErrors.NewWithCause(ErrInvalidPayload, err).
					WithDetail("job_type", job.Type)
			}
		}
		return fn(ctx, payload, job)
	})
}
