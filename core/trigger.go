package core

import "time"

// TriggerState is the externally visible state of a stored trigger.
type TriggerState string

const (
	StateNone     TriggerState = "NONE"
	StateNormal   TriggerState = "NORMAL"
	StatePaused   TriggerState = "PAUSED"
	StateComplete TriggerState = "COMPLETE"
	StateError    TriggerState = "ERROR"
	StateBlocked  TriggerState = "BLOCKED"
)

// DefaultPriority is assigned to triggers built without an explicit
// priority. Higher priorities fire first on fire-time ties.
const DefaultPriority = 5

// Misfire instructions shared by all trigger families.
const (
	// MisfireInstructionIgnoreMisfirePolicy disables the misfire check for
	// the trigger entirely; overdue fire times are worked off as fast as
	// the scheduler can dispatch them.
	MisfireInstructionIgnoreMisfirePolicy = -1

	// MisfireInstructionSmartPolicy lets the trigger family pick a
	// sensible policy based on its own configuration.
	MisfireInstructionSmartPolicy = 0
)

// Simple-interval family misfire instructions.
const (
	MisfireSimpleFireNow = iota + 1
	MisfireSimpleNowWithExistingRepeatCount
	MisfireSimpleNowWithRemainingRepeatCount
	MisfireSimpleNextWithRemainingCount
	MisfireSimpleNextWithExistingCount
)

// Cron family misfire instructions.
const (
	MisfireCronFireOnceNow = iota + 1
	MisfireCronDoNothing
)

// Daily time-interval family misfire instructions.
const (
	MisfireDailyFireOnceNow = iota + 1
	MisfireDailyDoNothing
)

// CompletedExecutionInstruction tells the store what to do with a trigger
// after its job execution finished.
type CompletedExecutionInstruction int

const (
	InstructionNoop CompletedExecutionInstruction = iota
	InstructionReExecuteJob
	InstructionSetTriggerComplete
	InstructionDeleteTrigger
	InstructionSetTriggerError
	InstructionSetAllJobTriggersComplete
	InstructionSetAllJobTriggersError
)

func (i CompletedExecutionInstruction) String() string {
	switch i {
	case InstructionNoop:
		return "NOOP"
	case InstructionReExecuteJob:
		return "RE_EXECUTE_JOB"
	case InstructionSetTriggerComplete:
		return "SET_TRIGGER_COMPLETE"
	case InstructionDeleteTrigger:
		return "DELETE_TRIGGER"
	case InstructionSetTriggerError:
		return "SET_TRIGGER_ERROR"
	case InstructionSetAllJobTriggersComplete:
		return "SET_ALL_JOB_TRIGGERS_COMPLETE"
	case InstructionSetAllJobTriggersError:
		return "SET_ALL_JOB_TRIGGERS_ERROR"
	}
	return "UNKNOWN"
}

// Trigger is the read surface common to all trigger families. A zero
// time.Time means "none" wherever a time is optional.
type Trigger interface {
	Key() TriggerKey
	JobKey() JobKey
	Description() string
	Priority() int
	StartTime() time.Time
	EndTime() time.Time
	NextFireTime() time.Time
	PreviousFireTime() time.Time
	CalendarName() string
	MisfireInstruction() int
	JobData() *JobDataMap
	FireInstanceID() string

	// GetFireTimeAfter returns the first scheduled fire time strictly
	// after the given instant, ignoring calendars; zero if the schedule is
	// exhausted.
	GetFireTimeAfter(after time.Time) time.Time
}

// OperableTrigger is the mutable surface the store and scheduler drive.
// The three families (simple, cron, daily time-interval) implement it;
// instances cross the store boundary only as clones.
type OperableTrigger interface {
	Trigger

	// ComputeFirstFireTime establishes the initial next-fire-time, honoring
	// the calendar, and returns it.
	ComputeFirstFireTime(cal Calendar) time.Time

	// Triggered advances previous/next fire times after a firing.
	Triggered(cal Calendar)

	// UpdateAfterMisfire applies the trigger's misfire instruction.
	UpdateAfterMisfire(cal Calendar)

	// UpdateWithNewCalendar recomputes the next fire time against a
	// replacement calendar.
	UpdateWithNewCalendar(cal Calendar, misfireThreshold time.Duration)

	// ExecutionCompleteInstruction maps the outcome of a job run to the
	// store instruction for this trigger.
	ExecutionCompleteInstruction(ctx *JobExecutionContext, jobErr error) CompletedExecutionInstruction

	Validate() error
	Clone() OperableTrigger

	setNextFireTime(t time.Time)
	setPreviousFireTime(t time.Time)
	setFireInstanceID(id string)
}

// TriggerFiredBundle carries everything a worker needs to run one firing.
// The trigger and job detail are clones; user code may mutate them freely.
type TriggerFiredBundle struct {
	JobDetail         *JobDetail
	Trigger           OperableTrigger
	Calendar          Calendar
	Recovering        bool
	FireTime          time.Time
	ScheduledFireTime time.Time
	PrevFireTime      time.Time
	NextFireTime      time.Time
}

// baseTrigger holds the attributes shared by every family. Families embed
// it and provide the schedule math.
type baseTrigger struct {
	key                TriggerKey
	jobKey             JobKey
	description        string
	priority           int
	startTime          time.Time
	endTime            time.Time
	calendarName       string
	misfireInstruction int
	nextFireTime       time.Time
	previousFireTime   time.Time
	fireInstanceID     string
	jobData            *JobDataMap
}

func newBaseTrigger(key TriggerKey, jobKey JobKey) baseTrigger {
	return baseTrigger{
		key:      key,
		jobKey:   jobKey,
		priority: DefaultPriority,
		jobData:  NewJobDataMap(),
	}
}

func newBaseTriggerAt(key TriggerKey, jobKey JobKey, start time.Time) baseTrigger {
	b := newBaseTrigger(key, jobKey)
	b.startTime = start
	return b
}

func (b *baseTrigger) Key() TriggerKey             { return b.key }
func (b *baseTrigger) JobKey() JobKey              { return b.jobKey }
func (b *baseTrigger) Description() string         { return b.description }
func (b *baseTrigger) Priority() int               { return b.priority }
func (b *baseTrigger) StartTime() time.Time        { return b.startTime }
func (b *baseTrigger) EndTime() time.Time          { return b.endTime }
func (b *baseTrigger) NextFireTime() time.Time     { return b.nextFireTime }
func (b *baseTrigger) PreviousFireTime() time.Time { return b.previousFireTime }
func (b *baseTrigger) CalendarName() string        { return b.calendarName }
func (b *baseTrigger) MisfireInstruction() int     { return b.misfireInstruction }
func (b *baseTrigger) FireInstanceID() string      { return b.fireInstanceID }

func (b *baseTrigger) JobData() *JobDataMap {
	if b.jobData == nil {
		b.jobData = NewJobDataMap()
	}
	return b.jobData
}

func (b *baseTrigger) SetDescription(d string)        { b.description = d }
func (b *baseTrigger) SetPriority(p int)              { b.priority = p }
func (b *baseTrigger) SetStartTime(t time.Time)       { b.startTime = t }
func (b *baseTrigger) SetEndTime(t time.Time)         { b.endTime = t }
func (b *baseTrigger) SetCalendarName(name string)    { b.calendarName = name }
func (b *baseTrigger) SetMisfireInstruction(code int) { b.misfireInstruction = code }
func (b *baseTrigger) SetJobData(m *JobDataMap)       { b.jobData = m }

func (b *baseTrigger) setNextFireTime(t time.Time)     { b.nextFireTime = t }
func (b *baseTrigger) setPreviousFireTime(t time.Time) { b.previousFireTime = t }
func (b *baseTrigger) setFireInstanceID(id string)     { b.fireInstanceID = id }

func (b *baseTrigger) cloneBase() baseTrigger {
	c := *b
	c.jobData = b.jobData.Clone()
	return c
}

func (b *baseTrigger) validateBase() error {
	if b.key.IsZero() {
		return WrapTriggerError("validate", b.key, ErrInvalidTrigger)
	}
	if b.jobKey.IsZero() {
		return WrapTriggerError("validate: missing job key for", b.key, ErrInvalidTrigger)
	}
	if !b.endTime.IsZero() && !b.startTime.IsZero() && b.endTime.Before(b.startTime) {
		return WrapTriggerError("validate: end time before start time for", b.key, ErrInvalidTrigger)
	}
	return nil
}

// maxCalendarSkips bounds the schedule walk performed while a calendar
// keeps excluding candidate fire times.
const maxCalendarSkips = 100000

// advanceIncluded walks the trigger's own schedule from candidate until the
// calendar includes a fire time, bounded by the trigger end time. Zero is
// returned when the schedule is exhausted first.
func (b *baseTrigger) advanceIncluded(cal Calendar, candidate time.Time, fireTimeAfter func(time.Time) time.Time) time.Time {
	if cal == nil {
		return candidate
	}
	for i := 0; !candidate.IsZero() && !cal.IsTimeIncluded(candidate); i++ {
		if i >= maxCalendarSkips {
			return time.Time{}
		}
		candidate = fireTimeAfter(candidate)
		if !b.endTime.IsZero() && candidate.After(b.endTime) {
			return time.Time{}
		}
	}
	return candidate
}

// updateCalendarRecompute re-derives the next fire time against a
// replacement calendar, starting from the later of the previous fire time
// and (now - misfireThreshold).
func (b *baseTrigger) updateCalendarRecompute(cal Calendar, misfireThreshold time.Duration, fireTimeAfter func(time.Time) time.Time) {
	ref := time.Now().Add(-misfireThreshold)
	if !b.previousFireTime.IsZero() && b.previousFireTime.After(ref) {
		ref = b.previousFireTime
	}
	next := fireTimeAfter(ref)
	b.nextFireTime = b.advanceIncluded(cal, next, fireTimeAfter)
}

// defaultExecutionCompleteInstruction implements the shared mapping from a
// run outcome to a completion instruction, honoring JobExecutionError
// flags.
func defaultExecutionCompleteInstruction(t Trigger, jobErr error) CompletedExecutionInstruction {
	if jee, ok := jobErr.(*JobExecutionError); ok {
		switch {
		case jee.RefireImmediately:
			return InstructionReExecuteJob
		case jee.UnscheduleFiringTrigger:
			return InstructionSetTriggerComplete
		case jee.UnscheduleAllTriggers:
			return InstructionSetAllJobTriggersComplete
		}
	}
	if t.NextFireTime().IsZero() {
		return InstructionDeleteTrigger
	}
	return InstructionNoop
}
