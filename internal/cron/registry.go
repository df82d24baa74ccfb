package cron

import (
	"context"
	"fmt"
)

// Job represents a scheduled task that runs inside the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry tracks registered cron jobs by unique name.
type Registry struct {
	jobs  []Job
	index map[string]Job
}

// NewRegistry builds a registry preloaded with the provided jobs. Nil jobs
// are ignored; a duplicate name panics since it is a wiring bug.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{index: map[string]Job{}}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			panic(err)
		}
	}
	return registry
}

// Register adds a job to the registry.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	if _, exists := r.index[job.Name()]; exists {
		return fmt.Errorf("cron job %q already registered", job.Name())
	}
	r.jobs = append(r.jobs, job)
	r.index[job.Name()] = job
	return nil
}

// Find returns the job registered under name.
func (r *Registry) Find(name string) (Job, bool) {
	job, ok := r.index[name]
	return job, ok
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
