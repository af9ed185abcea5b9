// Package registry implements the in-memory Job Registry (spec.md §4.F):
// the Controller's bookkeeping of every submitted job's coarse lifecycle
// state, independent of the Monitor's filesystem-derived fine-grained view.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// State is a Registry-level lifecycle state, coarser than jobfs.Phase.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Job is the Registry's record of one submission (§3 Job).
type Job struct {
	ID                string
	URL               string
	CreatedAt         string
	CompletedAt       string
	State             State
	Percentage        float64
	Result            any
	ErrorMessage      string
	RepositoryNames   []string
}

// Registry is a thread-safe job_id → Job map.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Create adds a new pending Job and returns a copy of it.
func (r *Registry) Create(id, url, createdAt string) Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	job := &Job{ID: id, URL: url, CreatedAt: createdAt, State: StatePending}
	r.jobs[id] = job
	return *job
}

// UpdateStatus transitions a job to running (if not already terminal) and
// updates its reported percentage and known repository names.
func (r *Registry) UpdateStatus(id string, percentage float64, repoNames []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("registry: unknown job %q", id)
	}
	if job.State == StateCompleted || job.State == StateFailed {
		return nil
	}

	job.State = StateRunning
	job.Percentage = percentage
	if repoNames != nil {
		job.RepositoryNames = repoNames
	}
	return nil
}

// SetResult marks a job completed with a final result payload.
func (r *Registry) SetResult(id string, result any, completedAt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("registry: unknown job %q", id)
	}
	job.State = StateCompleted
	job.Result = result
	job.Percentage = 100
	job.CompletedAt = completedAt
	return nil
}

// SetError marks a job failed with an error message.
func (r *Registry) SetError(id string, errMsg string, completedAt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("registry: unknown job %q", id)
	}
	job.State = StateFailed
	job.ErrorMessage = errMsg
	job.CompletedAt = completedAt
	return nil
}

// Get returns a copy of a job record, or false if unknown.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// CountActive returns the number of jobs in pending or running state, used
// by the Controller to enforce the max-concurrent-jobs cap.
func (r *Registry) CountActive() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, job := range r.jobs {
		if job.State == StatePending || job.State == StateRunning {
			n++
		}
	}
	return n
}

// List returns a paginated, optionally status-filtered, stable-ordered
// (by CreatedAt then ID) view of the Registry.
func (r *Registry) List(page, perPage int, status State) []Job {
	r.mu.Lock()
	all := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if status != "" && job.State != status {
			continue
		}
		all = append(all, *job)
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt != all[j].CreatedAt {
			return all[i].CreatedAt < all[j].CreatedAt
		}
		return all[i].ID < all[j].ID
	})

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = len(all)
		if perPage == 0 {
			perPage = 1
		}
	}

	start := (page - 1) * perPage
	if start >= len(all) {
		return []Job{}
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}
