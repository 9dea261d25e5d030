package core

import (
	"fmt"
	"sort"
	"sync"
)

// Job is the unit of user-supplied work. Execute runs on a worker
// goroutine; returning a *JobExecutionError lets the job steer what
// happens to its firing trigger afterwards.
type Job interface {
	Execute(ctx *JobExecutionContext) error
}

// JobFunc adapts a plain function to the Job interface.
type JobFunc func(ctx *JobExecutionContext) error

func (f JobFunc) Execute(ctx *JobExecutionContext) error { return f(ctx) }

// JobDetail is the stored description of a job: identity, the type of the
// runnable, its data, and its behavioral flags. Instances crossing the
// store boundary are always clones.
type JobDetail struct {
	Key         JobKey
	Description string

	// JobType names a constructor registered with a JobFactory. It is the
	// portable identifier of the runnable.
	JobType string

	JobData *JobDataMap

	// Durable jobs may exist with no triggers; non-durable jobs are
	// deleted when their last trigger is removed.
	Durable bool

	// PersistJobDataAfterExecution writes the execution context's job data
	// back to the store when the run completes.
	PersistJobDataAfterExecution bool

	// ConcurrentExecutionDisallowed limits the job to one execution in
	// flight; its other triggers are held in BLOCKED meanwhile.
	ConcurrentExecutionDisallowed bool
}

func NewJobDetail(key JobKey, jobType string) *JobDetail {
	return &JobDetail{
		Key:     key,
		JobType: jobType,
		JobData: NewJobDataMap(),
	}
}

func (d *JobDetail) Clone() *JobDetail {
	if d == nil {
		return nil
	}
	c := *d
	c.JobData = d.JobData.Clone()
	return &c
}

func (d *JobDetail) String() string {
	return fmt.Sprintf("JobDetail %q type=%q durable=%t", d.Key, d.JobType, d.Durable)
}

// JobFactory produces the runnable for a fired bundle. Implementations may
// inject dependencies; the default factory dispatches on JobType through a
// constructor registry.
type JobFactory interface {
	NewJob(bundle *TriggerFiredBundle) (Job, error)
}

// JobConstructor builds a fresh Job instance per firing.
type JobConstructor func() Job

// RegistryJobFactory maps JobType names to constructors.
type RegistryJobFactory struct {
	mu           sync.RWMutex
	constructors map[string]JobConstructor
}

func NewRegistryJobFactory() *RegistryJobFactory {
	return &RegistryJobFactory{constructors: make(map[string]JobConstructor)}
}

// Register binds a job type name to its constructor, replacing any
// previous binding.
func (f *RegistryJobFactory) Register(jobType string, ctor JobConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[jobType] = ctor
}

// RegisteredTypes returns the known job type names, sorted.
func (f *RegistryJobFactory) RegisteredTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.constructors))
	for t := range f.constructors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (f *RegistryJobFactory) NewJob(bundle *TriggerFiredBundle) (Job, error) {
	f.mu.RLock()
	ctor, ok := f.constructors[bundle.JobDetail.JobType]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("instantiate job %q: no constructor registered for type %q: %w",
			bundle.JobDetail.Key, bundle.JobDetail.JobType, ErrJobNotFound)
	}
	return ctor(), nil
}
