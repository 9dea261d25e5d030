package core

import (
	"fmt"
	"time"
)

// CronTrigger fires on the schedule described by a cron expression,
// evaluated in the expression's time zone.
type CronTrigger struct {
	baseTrigger
	expression *CronExpression
}

// NewCronTrigger builds a cron trigger in the local time zone, starting
// immediately.
func NewCronTrigger(key TriggerKey, jobKey JobKey, expression string) (*CronTrigger, error) {
	return NewCronTriggerInLocation(key, jobKey, expression, time.Local)
}

// NewCronTriggerInLocation builds a cron trigger whose expression is
// evaluated in loc.
func NewCronTriggerInLocation(key TriggerKey, jobKey JobKey, expression string, loc *time.Location) (*CronTrigger, error) {
	expr, err := ParseCronExpressionInLocation(expression, loc)
	if err != nil {
		return nil, err
	}
	return &CronTrigger{
		baseTrigger: newBaseTriggerAt(key, jobKey, time.Now()),
		expression:  expr,
	}, nil
}

func (t *CronTrigger) Expression() string {
	return t.expression.String()
}

func (t *CronTrigger) Location() *time.Location {
	return t.expression.Location()
}

func (t *CronTrigger) Validate() error {
	if err := t.validateBase(); err != nil {
		return err
	}
	if t.expression == nil {
		return fmt.Errorf("%w: %q: missing cron expression", ErrInvalidTrigger, t.key)
	}
	return nil
}

func (t *CronTrigger) GetFireTimeAfter(after time.Time) time.Time {
	if after.Before(t.startTime) {
		after = t.startTime.Add(-time.Second)
	}
	next := t.expression.NextAfter(after)
	if next.IsZero() {
		return next
	}
	if !t.endTime.IsZero() && next.After(t.endTime) {
		return time.Time{}
	}
	return next
}

func (t *CronTrigger) ComputeFirstFireTime(cal Calendar) time.Time {
	first := t.GetFireTimeAfter(t.startTime.Add(-time.Second))
	first = t.advanceIncluded(cal, first, t.GetFireTimeAfter)
	t.nextFireTime = first
	return first
}

func (t *CronTrigger) Triggered(cal Calendar) {
	t.previousFireTime = t.nextFireTime
	next := t.GetFireTimeAfter(t.nextFireTime)
	t.nextFireTime = t.advanceIncluded(cal, next, t.GetFireTimeAfter)
}

func (t *CronTrigger) UpdateAfterMisfire(cal Calendar) {
	instruction := t.misfireInstruction
	if instruction == MisfireInstructionIgnoreMisfirePolicy {
		return
	}
	if instruction == MisfireInstructionSmartPolicy {
		instruction = MisfireCronFireOnceNow
	}

	switch instruction {
	case MisfireCronFireOnceNow:
		t.nextFireTime = t.advanceIncluded(cal, time.Now(), t.GetFireTimeAfter)
	case MisfireCronDoNothing:
		next := t.GetFireTimeAfter(time.Now())
		t.nextFireTime = t.advanceIncluded(cal, next, t.GetFireTimeAfter)
	}
}

func (t *CronTrigger) UpdateWithNewCalendar(cal Calendar, misfireThreshold time.Duration) {
	t.updateCalendarRecompute(cal, misfireThreshold, t.GetFireTimeAfter)
}

func (t *CronTrigger) ExecutionCompleteInstruction(_ *JobExecutionContext, jobErr error) CompletedExecutionInstruction {
	return defaultExecutionCompleteInstruction(t, jobErr)
}

func (t *CronTrigger) Clone() OperableTrigger {
	out := *t
	out.baseTrigger = t.baseTrigger.cloneBase()
	out.expression = t.expression.Clone()
	return &out
}
