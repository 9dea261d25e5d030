package core

// JobListener observes job executions. Listeners are matched against job
// keys at registration; Name must be unique among job listeners.
type JobListener interface {
	Name() string

	// JobToBeExecuted runs before the job, after all trigger listeners
	// agreed to fire.
	JobToBeExecuted(ctx *JobExecutionContext)

	// JobExecutionVetoed runs instead of the job when a trigger listener
	// vetoed the firing.
	JobExecutionVetoed(ctx *JobExecutionContext)

	// JobWasExecuted runs after the job, jobErr carrying the run outcome.
	JobWasExecuted(ctx *JobExecutionContext, jobErr error)
}

// TriggerListener observes trigger firings and may veto job execution.
type TriggerListener interface {
	Name() string

	// TriggerFired runs when a trigger has fired and its job is about to
	// be dispatched.
	TriggerFired(trigger Trigger, ctx *JobExecutionContext)

	// VetoJobExecution may cancel the job run. The trigger is still
	// advanced; only the execution is skipped.
	VetoJobExecution(trigger Trigger, ctx *JobExecutionContext) bool

	// TriggerMisfired runs when the store detected a misfire, before the
	// misfire instruction is applied.
	TriggerMisfired(trigger Trigger)

	// TriggerComplete runs after the job finished and the completion
	// instruction was decided.
	TriggerComplete(trigger Trigger, ctx *JobExecutionContext, instruction CompletedExecutionInstruction)
}

// SchedulerListener observes scheduler lifecycle and data mutations.
type SchedulerListener interface {
	JobScheduled(trigger Trigger)
	JobUnscheduled(key TriggerKey)
	TriggerFinalized(trigger Trigger)
	TriggerPaused(key TriggerKey)
	TriggersPaused(group string)
	TriggerResumed(key TriggerKey)
	TriggersResumed(group string)
	JobAdded(job *JobDetail)
	JobDeleted(key JobKey)
	JobPaused(key JobKey)
	JobsPaused(group string)
	JobResumed(key JobKey)
	JobsResumed(group string)
	SchedulerError(msg string, err error)
	SchedulerStarting()
	SchedulerStarted()
	SchedulerInStandbyMode()
	SchedulerShuttingDown()
	SchedulerShutdown()
	SchedulingDataCleared()
}

// JobListenerSupport is a no-op base; embed it and override what you need.
type JobListenerSupport struct{}

func (JobListenerSupport) JobToBeExecuted(*JobExecutionContext)         {}
func (JobListenerSupport) JobExecutionVetoed(*JobExecutionContext)      {}
func (JobListenerSupport) JobWasExecuted(*JobExecutionContext, error)   {}

// TriggerListenerSupport is a no-op base for trigger listeners.
type TriggerListenerSupport struct{}

func (TriggerListenerSupport) TriggerFired(Trigger, *JobExecutionContext) {}
func (TriggerListenerSupport) VetoJobExecution(Trigger, *JobExecutionContext) bool {
	return false
}
func (TriggerListenerSupport) TriggerMisfired(Trigger) {}
func (TriggerListenerSupport) TriggerComplete(Trigger, *JobExecutionContext, CompletedExecutionInstruction) {
}

// SchedulerListenerSupport is a no-op base for scheduler listeners.
type SchedulerListenerSupport struct{}

func (SchedulerListenerSupport) JobScheduled(Trigger)            {}
func (SchedulerListenerSupport) JobUnscheduled(TriggerKey)       {}
func (SchedulerListenerSupport) TriggerFinalized(Trigger)        {}
func (SchedulerListenerSupport) TriggerPaused(TriggerKey)        {}
func (SchedulerListenerSupport) TriggersPaused(string)           {}
func (SchedulerListenerSupport) TriggerResumed(TriggerKey)       {}
func (SchedulerListenerSupport) TriggersResumed(string)          {}
func (SchedulerListenerSupport) JobAdded(*JobDetail)             {}
func (SchedulerListenerSupport) JobDeleted(JobKey)               {}
func (SchedulerListenerSupport) JobPaused(JobKey)                {}
func (SchedulerListenerSupport) JobsPaused(string)               {}
func (SchedulerListenerSupport) JobResumed(JobKey)               {}
func (SchedulerListenerSupport) JobsResumed(string)              {}
func (SchedulerListenerSupport) SchedulerError(string, error)    {}
func (SchedulerListenerSupport) SchedulerStarting()              {}
func (SchedulerListenerSupport) SchedulerStarted()               {}
func (SchedulerListenerSupport) SchedulerInStandbyMode()         {}
func (SchedulerListenerSupport) SchedulerShuttingDown()          {}
func (SchedulerListenerSupport) SchedulerShutdown()              {}
func (SchedulerListenerSupport) SchedulingDataCleared()          {}
