package core

import (
	"sync"
	"time"
)

// JobExecutionContext is handed to the job's Execute method. The trigger
// and job detail it carries are clones; mutating them only affects the
// running execution (and, for job data, the store when the job opted into
// PersistJobDataAfterExecution).
type JobExecutionContext struct {
	Scheduler *Scheduler
	JobDetail *JobDetail
	Trigger   OperableTrigger
	Calendar  Calendar
	Job       Job

	FireInstanceID    string
	FireTime          time.Time
	ScheduledFireTime time.Time
	PrevFireTime      time.Time
	NextFireTime      time.Time
	Recovering        bool

	// RefireCount counts InstructionReExecuteJob re-runs of this firing.
	RefireCount int

	// Result is set by the job for listeners to observe.
	Result any

	// JobRunTime is filled in after Execute returns.
	JobRunTime time.Duration

	mergedData *JobDataMap

	mu     sync.Mutex
	values map[string]any
}

func newJobExecutionContext(s *Scheduler, bundle *TriggerFiredBundle, job Job) *JobExecutionContext {
	merged := bundle.JobDetail.JobData.Clone()
	merged.PutAll(bundle.Trigger.JobData())
	merged.ClearDirtyFlag()
	return &JobExecutionContext{
		Scheduler:         s,
		JobDetail:         bundle.JobDetail,
		Trigger:           bundle.Trigger,
		Calendar:          bundle.Calendar,
		Job:               job,
		FireInstanceID:    bundle.Trigger.FireInstanceID(),
		FireTime:          bundle.FireTime,
		ScheduledFireTime: bundle.ScheduledFireTime,
		PrevFireTime:      bundle.PrevFireTime,
		NextFireTime:      bundle.NextFireTime,
		Recovering:        bundle.Recovering,
		mergedData:        merged,
		values:            make(map[string]any),
	}
}

// MergedJobDataMap is the trigger's data overlaid on the job's data.
// Writes here feed back to the stored job only when the job detail has
// PersistJobDataAfterExecution set.
func (c *JobExecutionContext) MergedJobDataMap() *JobDataMap {
	return c.mergedData
}

// Put stores a transient value scoped to this execution, visible to
// listeners. Safe for concurrent use.
func (c *JobExecutionContext) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Get retrieves a transient value stored with Put.
func (c *JobExecutionContext) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}
