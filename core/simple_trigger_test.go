package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSimpleTrigger(start time.Time, interval time.Duration, count int) *SimpleTrigger {
	return NewSimpleTrigger(NewTriggerKey("t"), NewJobKey("j"), start, interval, count)
}

func TestSimpleTriggerFireTimeGrid(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("CDT", -5*3600)
	start := time.Date(2006, time.June, 1, 10, 5, 15, 0, loc)
	trig := newTestSimpleTrigger(start, 10*time.Millisecond, 4)

	require.NoError(t, trig.Validate())

	// before start, the first fire time is the start itself
	assert.Equal(t, start, trig.GetFireTimeAfter(start.Add(-time.Hour)))

	// 34ms past start lands between the 3rd and 4th repeats
	got := trig.GetFireTimeAfter(start.Add(34 * time.Millisecond))
	assert.Equal(t, start.Add(40*time.Millisecond), got)

	// exactly on a grid point returns the next point, not the same one
	got = trig.GetFireTimeAfter(start.Add(20 * time.Millisecond))
	assert.Equal(t, start.Add(30*time.Millisecond), got)

	// past the last repeat the schedule is exhausted
	assert.True(t, trig.GetFireTimeAfter(start.Add(40*time.Millisecond)).IsZero())
}

func TestSimpleTriggerOneShot(t *testing.T) {
	t.Parallel()

	fireAt := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	trig := NewOneShotTrigger(NewTriggerKey("once"), NewJobKey("j"), fireAt)

	require.NoError(t, trig.Validate())
	assert.Equal(t, fireAt, trig.ComputeFirstFireTime(nil))
	assert.True(t, trig.GetFireTimeAfter(fireAt).IsZero())

	trig.Triggered(nil)
	assert.Equal(t, fireAt, trig.PreviousFireTime())
	assert.True(t, trig.NextFireTime().IsZero())
	assert.Equal(t, 1, trig.TimesTriggered())
}

func TestSimpleTriggerEndTimeBound(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	trig := newTestSimpleTrigger(start, time.Hour, RepeatIndefinitely)
	trig.SetEndTime(start.Add(2*time.Hour + 30*time.Minute))

	require.NoError(t, trig.Validate())
	assert.Equal(t, start.Add(2*time.Hour), trig.GetFireTimeAfter(start.Add(90*time.Minute)))
	assert.True(t, trig.GetFireTimeAfter(start.Add(2*time.Hour)).IsZero())
}

func TestSimpleTriggerValidate(t *testing.T) {
	t.Parallel()

	start := time.Now()

	trig := newTestSimpleTrigger(start, 0, 5)
	assert.ErrorIs(t, trig.Validate(), ErrInvalidTrigger)

	trig = newTestSimpleTrigger(start, time.Second, -2)
	assert.ErrorIs(t, trig.Validate(), ErrInvalidTrigger)

	trig = NewSimpleTrigger(TriggerKey{}, NewJobKey("j"), start, time.Second, 1)
	assert.ErrorIs(t, trig.Validate(), ErrInvalidTrigger)

	trig = newTestSimpleTrigger(start, time.Second, 1)
	trig.SetEndTime(start.Add(-time.Minute))
	assert.ErrorIs(t, trig.Validate(), ErrInvalidTrigger)
}

func TestSimpleTriggerMisfireFireNow(t *testing.T) {
	t.Parallel()

	start := time.Now().Add(-time.Hour)
	trig := newTestSimpleTrigger(start, time.Minute, RepeatIndefinitely)
	trig.SetMisfireInstruction(MisfireSimpleFireNow)
	trig.ComputeFirstFireTime(nil)

	before := time.Now()
	trig.UpdateAfterMisfire(nil)
	next := trig.NextFireTime()
	assert.False(t, next.Before(before))
	assert.False(t, next.After(time.Now()))
}

func TestSimpleTriggerMisfireNowWithRemainingRepeatCount(t *testing.T) {
	t.Parallel()

	start := time.Now().Add(-time.Hour)
	trig := newTestSimpleTrigger(start, time.Minute, 10)
	trig.SetMisfireInstruction(MisfireSimpleNowWithRemainingRepeatCount)
	trig.ComputeFirstFireTime(nil)
	trig.Triggered(nil)
	trig.Triggered(nil)
	trig.Triggered(nil)

	trig.UpdateAfterMisfire(nil)
	assert.Equal(t, 7, trig.RepeatCount())
	assert.Equal(t, 0, trig.TimesTriggered())
	assert.False(t, trig.NextFireTime().After(time.Now()))
}

func TestSimpleTriggerMisfireNowWithExistingRepeatCount(t *testing.T) {
	t.Parallel()

	start := time.Now().Add(-time.Hour)
	trig := newTestSimpleTrigger(start, time.Minute, 4)
	trig.SetMisfireInstruction(MisfireSimpleNowWithExistingRepeatCount)
	trig.ComputeFirstFireTime(nil)
	trig.Triggered(nil)
	trig.Triggered(nil)
	trig.Triggered(nil)

	trig.UpdateAfterMisfire(nil)
	assert.Equal(t, 1, trig.RepeatCount())
	assert.Equal(t, 0, trig.TimesTriggered())
	assert.False(t, trig.NextFireTime().After(time.Now()))

	// three of the five total fires were consumed before the misfire, so
	// exactly two remain: one now and one repeat
	fires := 0
	for !trig.NextFireTime().IsZero() {
		trig.Triggered(nil)
		fires++
	}
	assert.Equal(t, 2, fires)
}

func TestSimpleTriggerMisfireNextWithExistingCount(t *testing.T) {
	t.Parallel()

	start := time.Now().Add(-time.Hour).Truncate(time.Second)
	trig := newTestSimpleTrigger(start, time.Minute, RepeatIndefinitely)
	trig.SetMisfireInstruction(MisfireSimpleNextWithExistingCount)
	trig.ComputeFirstFireTime(nil)

	trig.UpdateAfterMisfire(nil)
	next := trig.NextFireTime()
	assert.True(t, next.After(time.Now()))
	// next fire stays on the original grid
	assert.Equal(t, time.Duration(0), next.Sub(start)%time.Minute)
}

func TestSimpleTriggerMisfireIgnorePolicy(t *testing.T) {
	t.Parallel()

	start := time.Now().Add(-time.Hour)
	trig := newTestSimpleTrigger(start, time.Minute, RepeatIndefinitely)
	trig.SetMisfireInstruction(MisfireInstructionIgnoreMisfirePolicy)
	first := trig.ComputeFirstFireTime(nil)

	trig.UpdateAfterMisfire(nil)
	assert.Equal(t, first, trig.NextFireTime())
}

func TestSimpleTriggerSmartPolicySelection(t *testing.T) {
	t.Parallel()

	// one-shot trigger under smart policy fires now
	start := time.Now().Add(-time.Hour)
	oneShot := NewOneShotTrigger(NewTriggerKey("os"), NewJobKey("j"), start)
	oneShot.ComputeFirstFireTime(nil)
	oneShot.UpdateAfterMisfire(nil)
	assert.False(t, oneShot.NextFireTime().After(time.Now()))

	// repeating trigger under smart policy resets the repeat count
	rep := newTestSimpleTrigger(start, time.Minute, 20)
	rep.ComputeFirstFireTime(nil)
	rep.Triggered(nil)
	rep.UpdateAfterMisfire(nil)
	assert.Equal(t, 19, rep.RepeatCount())
	assert.Equal(t, 0, rep.TimesTriggered())
}

func TestSimpleTriggerCloneIsolation(t *testing.T) {
	t.Parallel()

	start := time.Now()
	trig := newTestSimpleTrigger(start, time.Second, 5)
	trig.JobData().Put("k", "v")
	trig.JobData().ClearDirtyFlag()
	trig.ComputeFirstFireTime(nil)

	clone := trig.Clone().(*SimpleTrigger)
	clone.Triggered(nil)
	clone.JobData().Put("k", "changed")

	assert.Equal(t, 0, trig.TimesTriggered())
	assert.Equal(t, 1, clone.TimesTriggered())
	v, _ := trig.JobData().GetString("k")
	assert.Equal(t, "v", v)
}

func TestSimpleTriggerExecutionCompleteInstruction(t *testing.T) {
	t.Parallel()

	start := time.Now()
	trig := newTestSimpleTrigger(start, time.Second, RepeatIndefinitely)
	trig.ComputeFirstFireTime(nil)
	trig.Triggered(nil)

	assert.Equal(t, InstructionNoop, trig.ExecutionCompleteInstruction(nil, nil))

	refire := &JobExecutionError{Cause: assert.AnError, RefireImmediately: true}
	assert.Equal(t, InstructionReExecuteJob, trig.ExecutionCompleteInstruction(nil, refire))

	unsched := &JobExecutionError{Cause: assert.AnError, UnscheduleFiringTrigger: true}
	assert.Equal(t, InstructionSetTriggerComplete, trig.ExecutionCompleteInstruction(nil, unsched))

	all := &JobExecutionError{Cause: assert.AnError, UnscheduleAllTriggers: true}
	assert.Equal(t, InstructionSetAllJobTriggersComplete, trig.ExecutionCompleteInstruction(nil, all))

	// exhausted schedule deletes the trigger
	done := NewOneShotTrigger(NewTriggerKey("d"), NewJobKey("j"), start)
	done.ComputeFirstFireTime(nil)
	done.Triggered(nil)
	assert.Equal(t, InstructionDeleteTrigger, done.ExecutionCompleteInstruction(nil, nil))
}
