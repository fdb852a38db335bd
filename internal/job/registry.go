package job

import (
	"sync"
	"time"
)

// Registry is the in-memory job map. Its lifecycle is the process lifecycle:
// jobs are never deleted. Status transitions go through the registry so the
// single-writer-per-job discipline has one enforcement point; reads return
// copies and never block writers for long.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

func (r *Registry) add(j *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = j
}

// Get returns a copy of the job, if known.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// markProcessing performs the pending → processing transition. It fails with
// ErrNotFound for unknown ids and ErrNotPending for any job that has already
// left pending, which is what makes double-execution impossible.
func (r *Registry) markProcessing(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != StatusPending {
		return ErrNotPending
	}
	now := time.Now().UTC()
	j.Status = StatusProcessing
	j.StartedAt = &now
	return nil
}

// finish performs the terminal transition out of processing. A nil cause
// completes the job; anything else fails it with the captured message.
func (r *Registry) finish(id string, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != StatusProcessing {
		return
	}
	now := time.Now().UTC()
	j.CompletedAt = &now
	if cause != nil {
		j.Status = StatusFailed
		j.Error = cause.Error()
		return
	}
	j.Status = StatusCompleted
}
