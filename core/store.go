package core

import "time"

// SchedulerSignaler is the store's only outbound dependency: a narrow
// callback surface into the scheduler loop and listener fan-out.
// Implementations must not call back into the store.
type SchedulerSignaler interface {
	NotifyTriggerListenersMisfired(trigger Trigger)
	NotifySchedulerListenersFinalized(trigger Trigger)
	NotifySchedulerListenersJobDeleted(key JobKey)
	NotifySchedulerListenersError(msg string, err error)

	// SignalSchedulingChange wakes the scheduler thread when a mutation
	// may have produced an earlier due trigger. A zero candidate means
	// "check immediately".
	SignalSchedulingChange(candidateNewNextFireTime time.Time)
}

// TriggerFiredResult pairs one acquired trigger's firing outcome: either a
// bundle for dispatch or an error.
type TriggerFiredResult struct {
	Bundle *TriggerFiredBundle
	Err    error
}

// JobAndTriggers associates a job with the triggers to store alongside it.
type JobAndTriggers struct {
	Job      *JobDetail
	Triggers []OperableTrigger
}

// JobStore owns all jobs, triggers, calendars and group pause state, and
// implements the acquire/fire/complete protocol the scheduler thread
// drives. All operations are atomic with respect to one another; none may
// invoke user code while holding internal locks.
type JobStore interface {
	// Initialize wires the signaler and logger before the scheduler runs.
	Initialize(signaler SchedulerSignaler, logger Logger)

	StoreJob(job *JobDetail, replaceExisting bool) error
	StoreTrigger(trigger OperableTrigger, replaceExisting bool) error
	StoreJobAndTrigger(job *JobDetail, trigger OperableTrigger) error
	StoreJobsAndTriggers(bundles []JobAndTriggers, replace bool) error
	RemoveJob(key JobKey) (bool, error)
	RemoveJobs(keys []JobKey) (bool, error)
	RemoveTrigger(key TriggerKey) (bool, error)
	RemoveTriggers(keys []TriggerKey) (bool, error)
	ReplaceTrigger(key TriggerKey, newTrigger OperableTrigger) (bool, error)
	RetrieveJob(key JobKey) (*JobDetail, error)
	RetrieveTrigger(key TriggerKey) (OperableTrigger, error)
	CheckJobExists(key JobKey) bool
	CheckTriggerExists(key TriggerKey) bool
	ClearAllSchedulingData() error

	StoreCalendar(name string, cal Calendar, replaceExisting, updateTriggers bool) error
	RemoveCalendar(name string) (bool, error)
	RetrieveCalendar(name string) (Calendar, error)
	CalendarNames() []string

	NumberOfJobs() int
	NumberOfTriggers() int
	NumberOfCalendars() int
	JobKeys(matcher GroupMatcher) []JobKey
	TriggerKeys(matcher GroupMatcher) []TriggerKey
	JobGroupNames() []string
	TriggerGroupNames() []string
	TriggersForJob(key JobKey) []OperableTrigger
	TriggerState(key TriggerKey) TriggerState

	PauseTrigger(key TriggerKey) error
	PauseTriggers(matcher GroupMatcher) ([]string, error)
	PauseJob(key JobKey) error
	PauseJobs(matcher GroupMatcher) ([]string, error)
	ResumeTrigger(key TriggerKey) error
	ResumeTriggers(matcher GroupMatcher) ([]string, error)
	ResumeJob(key JobKey) error
	ResumeJobs(matcher GroupMatcher) ([]string, error)
	PauseAll() error
	ResumeAll() error
	PausedTriggerGroups() []string

	// AcquireNextTriggers hands the scheduler thread up to maxCount
	// triggers due no later than noLaterThan (extended by timeWindow once
	// the first trigger is picked), marking them ACQUIRED.
	AcquireNextTriggers(noLaterThan time.Time, maxCount int, timeWindow time.Duration) []OperableTrigger

	// ReleaseAcquiredTrigger undoes an acquire that will not be fired.
	ReleaseAcquiredTrigger(trigger OperableTrigger)

	// TriggersFired advances each acquired trigger past its firing and
	// returns the bundles to dispatch. A nil bundle in a result means the
	// trigger vanished or was no longer acquired.
	TriggersFired(triggers []OperableTrigger) []TriggerFiredResult

	// TriggeredJobComplete is called by the worker when a job run
	// finished, with the instruction derived from the run's outcome.
	TriggeredJobComplete(trigger OperableTrigger, jobDetail *JobDetail, instruction CompletedExecutionInstruction)

	SetMisfireThreshold(d time.Duration)

	Shutdown()
}
