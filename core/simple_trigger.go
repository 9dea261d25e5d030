package core

import (
	"fmt"
	"time"
)

// RepeatIndefinitely is the repeat count of a simple trigger that never
// runs out of repeats.
const RepeatIndefinitely = -1

// SimpleTrigger fires at start and then every repeat interval, repeat
// count more times (or indefinitely).
type SimpleTrigger struct {
	baseTrigger
	repeatInterval time.Duration
	repeatCount    int
	timesTriggered int
}

// NewSimpleTrigger builds a simple-interval trigger. A repeat count of
// RepeatIndefinitely repeats without bound; a count of 0 fires exactly
// once at start.
func NewSimpleTrigger(key TriggerKey, jobKey JobKey, start time.Time, interval time.Duration, repeatCount int) *SimpleTrigger {
	return &SimpleTrigger{
		baseTrigger:    newBaseTriggerAt(key, jobKey, start),
		repeatInterval: interval,
		repeatCount:    repeatCount,
	}
}

// NewOneShotTrigger fires exactly once at the given time.
func NewOneShotTrigger(key TriggerKey, jobKey JobKey, fireAt time.Time) *SimpleTrigger {
	return NewSimpleTrigger(key, jobKey, fireAt, 0, 0)
}

func (t *SimpleTrigger) RepeatInterval() time.Duration { return t.repeatInterval }
func (t *SimpleTrigger) RepeatCount() int              { return t.repeatCount }
func (t *SimpleTrigger) TimesTriggered() int           { return t.timesTriggered }

func (t *SimpleTrigger) Validate() error {
	if err := t.validateBase(); err != nil {
		return err
	}
	if t.repeatCount < RepeatIndefinitely {
		return fmt.Errorf("%w: %q: repeat count %d", ErrInvalidTrigger, t.key, t.repeatCount)
	}
	if t.repeatCount != 0 && t.repeatInterval <= 0 {
		return fmt.Errorf("%w: %q: repeat interval must be positive when repeating", ErrInvalidTrigger, t.key)
	}
	if t.startTime.IsZero() {
		return fmt.Errorf("%w: %q: missing start time", ErrInvalidTrigger, t.key)
	}
	return nil
}

func (t *SimpleTrigger) GetFireTimeAfter(after time.Time) time.Time {
	if after.Before(t.startTime) {
		return t.boundByEnd(t.startTime)
	}
	if t.repeatCount == 0 || t.repeatInterval <= 0 {
		return time.Time{}
	}
	k := after.Sub(t.startTime)/t.repeatInterval + 1
	if t.repeatCount != RepeatIndefinitely && k > time.Duration(t.repeatCount) {
		return time.Time{}
	}
	return t.boundByEnd(t.startTime.Add(k * t.repeatInterval))
}

func (t *SimpleTrigger) boundByEnd(candidate time.Time) time.Time {
	if !t.endTime.IsZero() && candidate.After(t.endTime) {
		return time.Time{}
	}
	return candidate
}

func (t *SimpleTrigger) ComputeFirstFireTime(cal Calendar) time.Time {
	first := t.boundByEnd(t.startTime)
	first = t.advanceIncluded(cal, first, t.GetFireTimeAfter)
	t.nextFireTime = first
	return first
}

func (t *SimpleTrigger) Triggered(cal Calendar) {
	t.timesTriggered++
	t.previousFireTime = t.nextFireTime
	next := t.GetFireTimeAfter(t.nextFireTime)
	t.nextFireTime = t.advanceIncluded(cal, next, t.GetFireTimeAfter)
}

func (t *SimpleTrigger) UpdateAfterMisfire(cal Calendar) {
	instruction := t.misfireInstruction
	if instruction == MisfireInstructionIgnoreMisfirePolicy {
		return
	}
	if instruction == MisfireInstructionSmartPolicy {
		if t.repeatCount == 0 {
			instruction = MisfireSimpleFireNow
		} else {
			instruction = MisfireSimpleNowWithRemainingRepeatCount
		}
	}

	now := time.Now()
	switch instruction {
	case MisfireSimpleFireNow:
		t.nextFireTime = t.advanceIncluded(cal, now, t.GetFireTimeAfter)
	case MisfireSimpleNowWithExistingRepeatCount:
		// restart the grid at now but carry over the repeats already
		// consumed, so the total fire count is unchanged
		if t.repeatCount != RepeatIndefinitely && t.repeatCount != 0 {
			t.repeatCount -= t.timesTriggered
			if t.repeatCount < 0 {
				t.repeatCount = 0
			}
		}
		t.timesTriggered = 0
		t.startTime = now
		t.nextFireTime = t.advanceIncluded(cal, now, t.GetFireTimeAfter)
	case MisfireSimpleNowWithRemainingRepeatCount:
		if t.repeatCount != RepeatIndefinitely {
			t.repeatCount -= t.timesTriggered
			if t.repeatCount < 0 {
				t.repeatCount = 0
			}
		}
		t.timesTriggered = 0
		t.startTime = now
		t.nextFireTime = t.advanceIncluded(cal, now, t.GetFireTimeAfter)
	case MisfireSimpleNextWithExistingCount, MisfireSimpleNextWithRemainingCount:
		next := t.GetFireTimeAfter(now)
		t.nextFireTime = t.advanceIncluded(cal, next, t.GetFireTimeAfter)
	}
}

func (t *SimpleTrigger) UpdateWithNewCalendar(cal Calendar, misfireThreshold time.Duration) {
	t.updateCalendarRecompute(cal, misfireThreshold, t.GetFireTimeAfter)
}

func (t *SimpleTrigger) ExecutionCompleteInstruction(_ *JobExecutionContext, jobErr error) CompletedExecutionInstruction {
	return defaultExecutionCompleteInstruction(t, jobErr)
}

func (t *SimpleTrigger) Clone() OperableTrigger {
	out := *t
	out.baseTrigger = t.baseTrigger.cloneBase()
	return &out
}
